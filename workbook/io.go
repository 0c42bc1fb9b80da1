package workbook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMissingKey is returned by LoadWorkbook when a required JSON key
	// is absent.
	ErrMissingKey = errors.New("missing key")
	// ErrInvalidType is returned by LoadWorkbook when a JSON value has the
	// wrong type.
	ErrInvalidType = errors.New("invalid type")
)

type savedSheet struct {
	Name         string            `json:"name"`
	CellContents map[string]string `json:"cell-contents"`
}

type savedWorkbook struct {
	Sheets []savedSheet `json:"sheets"`
}

// SaveWorkbook writes the workbook as compact JSON: sheet order preserved,
// each cell's stored (trimmed) contents keyed by location, empty cells
// absent.
func (wb *Workbook) SaveWorkbook(w io.Writer) error {
	saved := savedWorkbook{Sheets: make([]savedSheet, 0, len(wb.sheets))}
	for _, s := range wb.sheets {
		saved.Sheets = append(saved.Sheets, savedSheet{
			Name:         s.Name(),
			CellContents: s.saveContents(),
		})
	}
	return json.NewEncoder(w).Encode(saved)
}

// LoadWorkbook reads a workbook from its JSON form. JSON syntax errors
// propagate from the decoder; a missing field is reported as
// ErrMissingKey and a wrongly typed one as ErrInvalidType.
func LoadWorkbook(r io.Reader) (*Workbook, error) {
	var raw any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	top, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: workbook must be an object", ErrInvalidType)
	}
	rawSheets, ok := top["sheets"]
	if !ok {
		return nil, fmt.Errorf("%w: \"sheets\"", ErrMissingKey)
	}
	sheetList, ok := rawSheets.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: \"sheets\" must be an array", ErrInvalidType)
	}

	wb := New()
	for _, rawSheet := range sheetList {
		obj, ok := rawSheet.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: sheet must be an object", ErrInvalidType)
		}
		rawName, ok := obj["name"]
		if !ok {
			return nil, fmt.Errorf("%w: \"name\"", ErrMissingKey)
		}
		name, ok := rawName.(string)
		if !ok {
			return nil, fmt.Errorf("%w: \"name\" must be a string", ErrInvalidType)
		}
		rawCells, ok := obj["cell-contents"]
		if !ok {
			return nil, fmt.Errorf("%w: \"cell-contents\"", ErrMissingKey)
		}
		cells, ok := rawCells.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: \"cell-contents\" must be an object", ErrInvalidType)
		}
		if _, _, err := wb.NewSheet(name); err != nil {
			return nil, err
		}
		for location, rawContents := range cells {
			contents, ok := rawContents.(string)
			if !ok {
				return nil, fmt.Errorf("%w: contents of %q must be a string", ErrInvalidType, location)
			}
			if err := wb.SetCellContents(name, location, contents); err != nil {
				return nil, err
			}
		}
	}
	return wb, nil
}
