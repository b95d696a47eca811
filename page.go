package pdf

// Page is one leaf of the page tree, with inherited attributes already
// resolved.
type Page struct {
	Dict      Dict
	Resources Dict
	MediaBox  [4]float64
	CropBox   [4]float64
	Rotate    int
}

// Catalog is the document's root dictionary.
func (f *File) Catalog() (Dict, error) {
	root, ok := f.trailer["Root"]
	if !ok {
		return nil, errf(KindMissingEntry, -1, "trailer missing /Root")
	}
	d, ok := GetDict(f, root)
	if !ok {
		return nil, errf(KindWrongDictionaryType, -1, "/Root does not resolve to a dictionary")
	}
	return d, nil
}

// Pages walks the page tree under the catalog's /Pages entry and returns a
// flat, reading-order slice of leaf pages with /Resources, /MediaBox,
// /CropBox and /Rotate inherited from the nearest ancestor that defines
// them.
func (f *File) Pages() ([]*Page, error) {
	cat, err := f.Catalog()
	if err != nil {
		return nil, err
	}
	rootPagesObj := cat["Pages"]
	rootPages, ok := GetDict(f, rootPagesObj)
	if !ok {
		return nil, errf(KindMissingEntry, -1, "catalog missing /Pages")
	}

	var out []*Page
	// A page tree node is only at risk of a cycle when reached through an
	// indirect reference (an inline Dict literal has no identity another
	// node could alias), so the seen-set tracks PlainRef, matching the
	// same discipline used for xref-chain and object-resolution cycles.
	seen := map[PlainRef]bool{}
	var walk func(nodeObj Object, node Dict, inherited inheritedAttrs, depth int) error
	walk = func(nodeObj Object, node Dict, inherited inheritedAttrs, depth int) error {
		if depth > maxParseDepth {
			return errf(KindMaxDepth, -1, "page tree nesting exceeds %d", maxParseDepth)
		}
		if ref, ok := nodeObj.(Reference); ok {
			pr := ref.PlainRef()
			if seen[pr] {
				return errf(KindOther, -1, "page tree contains a cycle at object %s", pr)
			}
			seen[pr] = true
		}

		merged := inherited.mergeFrom(f, node)

		if kids, ok := GetArray(f, node["Kids"]); ok {
			for _, kidObj := range kids {
				kid, ok := GetDict(f, kidObj)
				if !ok {
					continue
				}
				if err := walk(kidObj, kid, merged, depth+1); err != nil {
					return err
				}
			}
			return nil
		}

		page := &Page{
			Dict:      node,
			Resources: merged.resources,
			MediaBox:  merged.mediaBox,
			CropBox:   merged.cropBox,
			Rotate:    merged.rotate,
		}
		out = append(out, page)
		return nil
	}

	if err := walk(rootPagesObj, rootPages, inheritedAttrs{mediaBox: defaultMediaBox}, 0); err != nil {
		return nil, err
	}
	return out, nil
}

var defaultMediaBox = [4]float64{0, 0, 612, 792} // US Letter, the conventional fallback

type inheritedAttrs struct {
	resources Dict
	mediaBox  [4]float64
	cropBox   [4]float64
	rotate    int
}

func (a inheritedAttrs) mergeFrom(g Getter, node Dict) inheritedAttrs {
	out := a
	if res, ok := GetDict(g, node["Resources"]); ok {
		out.resources = res
	}
	if mb, ok := GetFloatArray(g, node["MediaBox"]); ok && len(mb) == 4 {
		out.mediaBox = [4]float64{mb[0], mb[1], mb[2], mb[3]}
	}
	if cb, ok := GetFloatArray(g, node["CropBox"]); ok && len(cb) == 4 {
		out.cropBox = [4]float64{cb[0], cb[1], cb[2], cb[3]}
	} else if out.cropBox == ([4]float64{}) {
		out.cropBox = out.mediaBox
	}
	if rot, ok := GetInteger(g, node["Rotate"]); ok {
		out.rotate = int(rot) % 360
	}
	return out
}

// ContentStreams returns the page's content stream bytes, concatenating a
// /Contents array with an intervening whitespace byte so an operator can
// never straddle a stream boundary.
func (f *File) ContentStreams(p *Page) ([]byte, error) {
	contents := p.Dict["Contents"]
	resolved, err := f.Resolve(contents)
	if err != nil {
		return nil, err
	}
	switch v := resolved.(type) {
	case *Stream:
		return f.DecodeStream(v)
	case Array:
		var out []byte
		for _, el := range v {
			st, ok := GetStream(f, el)
			if !ok {
				continue
			}
			decoded, err := f.DecodeStream(st)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded...)
			out = append(out, '\n')
		}
		return out, nil
	case Null:
		return nil, nil
	default:
		return nil, errf(KindUnexpectedPrimitive, -1, "/Contents has unexpected type %T", v)
	}
}

// PageCount returns the number of leaf pages. It is built on Pages, so it
// does the same tree walk and Resources/MediaBox inheritance work.
func (f *File) PageCount() (int, error) {
	pages, err := f.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}
