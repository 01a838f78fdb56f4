package directory

import (
	"encoding/json"
	"fmt"
	"io"
)

// Printer writes chat records either as tab-separated text
// (id, kind, name) or as one JSON object per line.
type Printer struct {
	w      io.Writer
	asJSON bool
}

func NewPrinter(w io.Writer, asJSON bool) *Printer {
	return &Printer{w: w, asJSON: asJSON}
}

func (p *Printer) Print(records []ChatRecord) error {
	enc := json.NewEncoder(p.w)
	enc.SetEscapeHTML(false)

	for _, r := range records {
		if p.asJSON {
			if err := enc.Encode(r); err != nil {
				return err
			}
			continue
		}
		name := ""
		if r.Name != nil {
			name = *r.Name
		}
		if _, err := fmt.Fprintf(p.w, "%s\t%s\t%s\n", r.ID, r.Kind(), name); err != nil {
			return err
		}
	}
	return nil
}
