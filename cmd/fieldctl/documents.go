package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/facturo/facturo-backend/internal/report/domain"
)

// readDocuments reads invoices from path, or stdin for "-". The input may be
// one object, an array of objects, or a stream of either.
func readDocuments(path string, stdin io.Reader) ([]domain.Document, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var docs []domain.Document
	dec := json.NewDecoder(r)
	for n := 1; ; n++ {
		var v any
		err := dec.Decode(&v)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: value %d: %w", path, n, err)
		}

		switch val := v.(type) {
		case map[string]any:
			docs = append(docs, val)
		case []any:
			for i, item := range val {
				doc, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%s: value %d: element %d is not an object", path, n, i)
				}
				docs = append(docs, doc)
			}
		default:
			return nil, fmt.Errorf("%s: value %d is not an object or array", path, n)
		}
	}
	return docs, nil
}
