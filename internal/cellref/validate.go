package cellref

// Endpoint is one resolved corner of a validated range.
type Endpoint struct {
	Row    int    `json:"row"`
	Column int    `json:"column"`
	Cell   string `json:"cell"`
}

// Validation is the dry-run report produced by Validate.
type Validation struct {
	Valid      bool      `json:"valid"`
	Range      string    `json:"range"`
	Start      *Endpoint `json:"start,omitempty"`
	End        *Endpoint `json:"end,omitempty"`
	Rows       int       `json:"rows,omitempty"`
	Columns    int       `json:"columns,omitempty"`
	Normalized bool      `json:"normalized,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Validate checks text as a range reference without failing. On success the
// report carries the normalized corners and dimensions; Normalized is set when
// the input corners were inverted.
func Validate(text string) Validation {
	r, swapped, err := parseRange(text)
	if err != nil {
		return Validation{Valid: false, Range: text, Error: err.Error()}
	}
	return Validation{
		Valid:      true,
		Range:      text,
		Start:      endpoint(r.Start),
		End:        endpoint(r.End),
		Rows:       r.Rows(),
		Columns:    r.Cols(),
		Normalized: swapped,
	}
}

func endpoint(c Cell) *Endpoint {
	return &Endpoint{Row: c.Row, Column: c.Col, Cell: c.String()}
}
