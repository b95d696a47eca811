package pdf

import (
	"github.com/corvidlabs/pdfcore/internal/filter"
)

// FilterName enumerates the PDF filter name constants.
type FilterName Name

const (
	FilterASCIIHex  FilterName = "ASCIIHexDecode"
	FilterASCII85   FilterName = "ASCII85Decode"
	FilterLZW       FilterName = "LZWDecode"
	FilterFlate     FilterName = "FlateDecode"
	FilterRunLength FilterName = "RunLengthDecode"
	FilterDCT       FilterName = "DCTDecode"
	FilterCCITTFax  FilterName = "CCITTFaxDecode"
	FilterJPX       FilterName = "JPXDecode"
	FilterJBIG2     FilterName = "JBIG2Decode"
	FilterCrypt     FilterName = "Crypt"
)

// imageFilters are preserved intact by decodeStreamBytes. internal/filter
// has DCT and CCITT decoders that a caller can apply to such a body; no
// code in this package calls them.
var imageFilters = map[FilterName]bool{
	FilterDCT:      true,
	FilterJPX:      true,
	FilterJBIG2:    true,
	FilterCCITTFax: true,
}

// FilterSpec is one entry in a stream's filter chain.
type FilterSpec struct {
	Name  FilterName
	Parms Dict
}

// GetFilters extracts the ordered filter chain from a stream dictionary,
// pairing each /Filter entry positionally with its /DecodeParms entry. Both
// fields may be a single Name/Dict or an Array of them.
func GetFilters(d Dict) ([]FilterSpec, error) {
	filterObj, ok := d["Filter"]
	if !ok {
		return nil, nil
	}
	var names []Name
	switch v := filterObj.(type) {
	case Name:
		names = []Name{v}
	case Array:
		for _, o := range v {
			n, ok := o.(Name)
			if !ok {
				return nil, errf(KindUnexpectedPrimitive, -1, "/Filter array element is not a name")
			}
			names = append(names, n)
		}
	default:
		return nil, errf(KindUnexpectedPrimitive, -1, "/Filter has unexpected type %T", v)
	}

	var parmsList []Dict
	if parmsObj, ok := d["DecodeParms"]; ok {
		switch v := parmsObj.(type) {
		case Dict:
			parmsList = []Dict{v}
		case Array:
			for _, o := range v {
				switch pv := o.(type) {
				case Dict:
					parmsList = append(parmsList, pv)
				case Null:
					parmsList = append(parmsList, nil)
				default:
					parmsList = append(parmsList, nil)
				}
			}
		case Null:
			// no params
		default:
			return nil, errf(KindUnexpectedPrimitive, -1, "/DecodeParms has unexpected type %T", v)
		}
	}

	specs := make([]FilterSpec, len(names))
	for i, n := range names {
		var p Dict
		if i < len(parmsList) {
			p = parmsList[i]
		}
		specs[i] = FilterSpec{Name: FilterName(n), Parms: p}
	}
	return specs, nil
}

// decodeStreamBytes applies the full filter chain to raw (already
// decrypted) stream bytes. Image-only codecs are left encoded.
func decodeStreamBytes(raw []byte, dict Dict, opts *ParseOptions) ([]byte, error) {
	specs, err := GetFilters(dict)
	if err != nil {
		return nil, err
	}
	data := raw
	for _, spec := range specs {
		if imageFilters[spec.Name] {
			// Image codecs are preserved; a mixed chain like
			// [ASCII85Decode DCTDecode] still needs the ASCII layer
			// peeled off, so only stop decoding once an image codec is
			// reached (it is conventionally last in the chain anyway).
			break
		}
		data, err = applyOneFilter(data, spec, opts)
		if err != nil {
			if opts.Tolerant {
				opts.logger().Warn("stream filter failed, returning partially decoded data", "filter", spec.Name, "err", err)
				return data, nil
			}
			return nil, err
		}
	}
	return data, nil
}

func applyOneFilter(data []byte, spec FilterSpec, opts *ParseOptions) ([]byte, error) {
	switch spec.Name {
	case FilterASCIIHex:
		out, err := filter.DecodeASCIIHex(data)
		if err != nil {
			return nil, wrapf(KindHexDecode, -1, err, "ASCIIHexDecode failed")
		}
		return out, nil
	case FilterASCII85:
		out, err := filter.DecodeASCII85(data)
		if err != nil {
			return nil, wrapf(KindAscii85Tail, -1, err, "ASCII85Decode failed")
		}
		return out, nil
	case FilterLZW:
		early := true
		if spec.Parms != nil {
			if v, ok := spec.Parms["EarlyChange"].(Integer); ok {
				early = v != 0
			}
		}
		out, err := filter.DecodeLZW(data, early)
		if err != nil {
			return nil, wrapf(KindParse, -1, err, "LZWDecode failed")
		}
		return filter.ApplyPredictor(out, predictorParamsFrom(spec.Parms))
	case FilterFlate:
		out, err := filter.DecodeFlate(data, predictorParamsFrom(spec.Parms))
		if err != nil {
			return nil, wrapf(KindIncorrectPredictorType, -1, err, "FlateDecode failed")
		}
		return out, nil
	case FilterRunLength:
		return filter.DecodeRunLength(data), nil
	case FilterCrypt:
		// Per-object decryption has already happened before filters run
		// (File.DecodeStream); an explicit /Crypt entry in the chain is
		// passed through unchanged, and a crypt filter named in its
		// parameters is not looked up.
		return data, nil
	default:
		return nil, errf(KindUnknownVariant, -1, "unsupported stream filter %q", spec.Name)
	}
}

func predictorParamsFrom(d Dict) filter.PredictorParams {
	p := filter.PredictorParams{}
	if d == nil {
		return p
	}
	if v, ok := d["Predictor"].(Integer); ok {
		p.Predictor = int(v)
	}
	if v, ok := d["Colors"].(Integer); ok {
		p.Colors = int(v)
	}
	if v, ok := d["BitsPerComponent"].(Integer); ok {
		p.BPC = int(v)
	}
	if v, ok := d["Columns"].(Integer); ok {
		p.Columns = int(v)
	}
	return p
}
