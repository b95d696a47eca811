package pdf

// resolveAndCast resolves obj (if it is a Reference) and type-asserts the
// result to T, returning the zero value and false on any mismatch rather
// than an error — the idiom used throughout the typed accessors below so
// optional dictionary fields degrade gracefully.
func resolveAndCast[T Native](g Getter, obj Object) (T, bool) {
	var zero T
	if obj == nil {
		return zero, false
	}
	n, err := g.Resolve(obj)
	if err != nil {
		return zero, false
	}
	v, ok := n.(T)
	return v, ok
}

func GetDict(g Getter, obj Object) (Dict, bool)       { return resolveAndCast[Dict](g, obj) }
func GetArray(g Getter, obj Object) (Array, bool)     { return resolveAndCast[Array](g, obj) }
func GetName(g Getter, obj Object) (Name, bool)       { return resolveAndCast[Name](g, obj) }
func GetString(g Getter, obj Object) (String, bool)   { return resolveAndCast[String](g, obj) }
func GetInteger(g Getter, obj Object) (Integer, bool) { return resolveAndCast[Integer](g, obj) }
func GetReal(g Getter, obj Object) (Real, bool)       { return resolveAndCast[Real](g, obj) }
func GetBoolean(g Getter, obj Object) (Boolean, bool) { return resolveAndCast[Boolean](g, obj) }
func GetStream(g Getter, obj Object) (*Stream, bool)  { return resolveAndCast[*Stream](g, obj) }

// GetNumber resolves obj to either an Integer or Real and returns it as a
// float64, since PDF producers freely mix the two numeric representations.
func GetNumber(g Getter, obj Object) (float64, bool) {
	if obj == nil {
		return 0, false
	}
	n, err := g.Resolve(obj)
	if err != nil {
		return 0, false
	}
	switch v := n.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	default:
		return 0, false
	}
}

// GetFloatArray resolves obj to an Array of numbers and returns them as
// []float64, used for /Matrix, /FontMatrix, /BBox and similar fields.
func GetFloatArray(g Getter, obj Object) ([]float64, bool) {
	arr, ok := GetArray(g, obj)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(arr))
	for i, el := range arr {
		v, ok := GetNumber(g, el)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// GetDictTyped resolves obj to a Dict and checks its /Type entry (when
// present) matches want; a missing /Type is tolerated since many real-world
// PDFs omit it.
func GetDictTyped(g Getter, obj Object, want Name) (Dict, error) {
	d, ok := GetDict(g, obj)
	if !ok {
		return nil, errf(KindWrongDictionaryType, -1, "expected a dictionary")
	}
	if err := CheckDictType(d, want); err != nil {
		return nil, err
	}
	return d, nil
}

// CheckDictType validates d's /Type entry against want, if present.
func CheckDictType(d Dict, want Name) error {
	t, ok := d["Type"].(Name)
	if !ok {
		return nil
	}
	if t != want {
		return errf(KindWrongDictionaryType, -1, "expected /Type /%s, found /%s", want, t)
	}
	return nil
}

// IsTagged reports whether d declares /Type == want.
func IsTagged(d Dict, want Name) bool {
	t, ok := d["Type"].(Name)
	return ok && t == want
}
