package pdf

import (
	"bytes"
	"math"

	"seehuhn.de/go/icc"
)

// Space is implemented by every PDF color space this package understands.
// NumComponents is the number of color components a Color value in this
// space carries; ToRGB converts those components to sRGB in [0,1] using
// the naive, non-color-managed formulas the content interpreter uses for
// everything except a resolvable ICCBased profile (see DESIGN.md).
type Space interface {
	Family() Name
	NumComponents() int
	ToRGB(comps []float64) (r, g, b float64)
}

// DecodeColorSpace resolves a /ColorSpace entry (a Name for a device space
// or a named resource, or an Array for a parameterized space) into a Space.
// resources is consulted for Name entries that refer to a page's
// /Resources/ColorSpace dictionary rather than a device space built into
// the PDF grammar; it may be nil when no such lookup is possible.
func DecodeColorSpace(g Getter, obj Object, resources Dict) (Space, error) {
	resolved, err := g.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch v := resolved.(type) {
	case Name:
		switch v {
		case "DeviceGray", "G", "CalGray":
			return DeviceGray{}, nil
		case "DeviceRGB", "RGB":
			return DeviceRGB{}, nil
		case "DeviceCMYK", "CMYK":
			return DeviceCMYK{}, nil
		case "Pattern":
			return &PatternSpace{}, nil
		default:
			if resources != nil {
				if csDict, ok := GetDict(g, resources["ColorSpace"]); ok {
					if entry, ok := csDict[v]; ok {
						return DecodeColorSpace(g, entry, resources)
					}
				}
			}
			return nil, errf(KindMissingEntry, -1, "unresolvable color space name /%s", v)
		}
	case Array:
		return decodeArraySpace(g, v, resources)
	default:
		return nil, errf(KindUnexpectedPrimitive, -1, "color space has unexpected type %T", v)
	}
}

func decodeArraySpace(g Getter, arr Array, resources Dict) (Space, error) {
	if len(arr) == 0 {
		return nil, errf(KindInvalid, -1, "empty color space array")
	}
	family, ok := GetName(g, arr[0])
	if !ok {
		return nil, errf(KindUnexpectedPrimitive, -1, "color space array has non-name family")
	}

	switch family {
	case "CalGray":
		d, _ := GetDict(g, arrAt(arr, 1))
		return decodeCalGray(g, d)
	case "CalRGB":
		d, _ := GetDict(g, arrAt(arr, 1))
		return decodeCalRGB(g, d)
	case "Lab":
		d, _ := GetDict(g, arrAt(arr, 1))
		return decodeLab(g, d)
	case "ICCBased":
		st, ok := GetStream(g, arrAt(arr, 1))
		if !ok {
			return nil, errf(KindWrongDictionaryType, -1, "ICCBased space stream missing")
		}
		return decodeICCBased(g, st)
	case "Indexed":
		return decodeIndexed(g, arr, resources)
	case "Separation":
		return decodeSeparation(g, arr, resources)
	case "DeviceN":
		return decodeDeviceN(g, arr, resources)
	case "Pattern":
		if len(arr) < 2 {
			return &PatternSpace{}, nil
		}
		base, err := DecodeColorSpace(g, arr[1], resources)
		if err != nil {
			return nil, err
		}
		return &PatternSpace{Base: base}, nil
	case "DeviceGray", "DeviceRGB", "DeviceCMYK":
		return DecodeColorSpace(g, family, resources)
	default:
		return nil, errf(KindUnexpectedPrimitive, -1, "unsupported color space family /%s", family)
	}
}

func arrAt(arr Array, i int) Object {
	if i < len(arr) {
		return arr[i]
	}
	return nil
}

// ---- device spaces ----

type DeviceGray struct{}

func (DeviceGray) Family() Name        { return "DeviceGray" }
func (DeviceGray) NumComponents() int  { return 1 }
func (DeviceGray) ToRGB(c []float64) (r, g, b float64) {
	v := clamp01(c[0])
	return v, v, v
}

type DeviceRGB struct{}

func (DeviceRGB) Family() Name       { return "DeviceRGB" }
func (DeviceRGB) NumComponents() int { return 3 }
func (DeviceRGB) ToRGB(c []float64) (r, g, b float64) {
	return clamp01(c[0]), clamp01(c[1]), clamp01(c[2])
}

// DeviceCMYK converts via the naive subtractive formula the PDF content
// interpreter uses for the `k`/`K` operators (spec section on the Color
// operators): r=1-min(1,c+k), g=1-min(1,m+k), b=1-min(1,y+k).
type DeviceCMYK struct{}

func (DeviceCMYK) Family() Name       { return "DeviceCMYK" }
func (DeviceCMYK) NumComponents() int { return 4 }
func (DeviceCMYK) ToRGB(c []float64) (r, g, b float64) {
	cc, m, y, k := c[0], c[1], c[2], c[3]
	r = 1 - minF(1, cc+k)
	g = 1 - minF(1, m+k)
	b = 1 - minF(1, y+k)
	return
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ---- CIE-based spaces ----

// SpaceCalGray is a CIE-based gray space with a gamma correction exponent.
// Its rendering is approximated as plain gray, since full XYZ colorimetry
// and chromatic adaptation are out of scope (see DESIGN.md).
type SpaceCalGray struct {
	WhitePoint [3]float64
	BlackPoint [3]float64
	Gamma      float64
}

func (s *SpaceCalGray) Family() Name       { return "CalGray" }
func (s *SpaceCalGray) NumComponents() int { return 1 }
func (s *SpaceCalGray) ToRGB(c []float64) (r, g, b float64) {
	v := clamp01(c[0])
	return v, v, v
}

func decodeCalGray(g Getter, d Dict) (*SpaceCalGray, error) {
	s := &SpaceCalGray{WhitePoint: [3]float64{1, 1, 1}, Gamma: 1}
	if wp, ok := GetFloatArray(g, d["WhitePoint"]); ok && len(wp) == 3 {
		s.WhitePoint = [3]float64{wp[0], wp[1], wp[2]}
	}
	if bp, ok := GetFloatArray(g, d["BlackPoint"]); ok && len(bp) == 3 {
		s.BlackPoint = [3]float64{bp[0], bp[1], bp[2]}
	}
	if gm, ok := GetNumber(g, d["Gamma"]); ok {
		s.Gamma = gm
	}
	return s, nil
}

// SpaceCalRGB is a CIE-based RGB space, rendered as plain DeviceRGB since
// full colorimetric transform is out of scope.
type SpaceCalRGB struct {
	WhitePoint [3]float64
	BlackPoint [3]float64
	Gamma      [3]float64
	Matrix     [9]float64
}

func (s *SpaceCalRGB) Family() Name       { return "CalRGB" }
func (s *SpaceCalRGB) NumComponents() int { return 3 }
func (s *SpaceCalRGB) ToRGB(c []float64) (r, g, b float64) {
	return clamp01(c[0]), clamp01(c[1]), clamp01(c[2])
}

func decodeCalRGB(g Getter, d Dict) (*SpaceCalRGB, error) {
	s := &SpaceCalRGB{
		WhitePoint: [3]float64{1, 1, 1},
		Gamma:      [3]float64{1, 1, 1},
		Matrix:     [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
	if wp, ok := GetFloatArray(g, d["WhitePoint"]); ok && len(wp) == 3 {
		s.WhitePoint = [3]float64{wp[0], wp[1], wp[2]}
	}
	if bp, ok := GetFloatArray(g, d["BlackPoint"]); ok && len(bp) == 3 {
		s.BlackPoint = [3]float64{bp[0], bp[1], bp[2]}
	}
	if gm, ok := GetFloatArray(g, d["Gamma"]); ok && len(gm) == 3 {
		s.Gamma = [3]float64{gm[0], gm[1], gm[2]}
	}
	if mx, ok := GetFloatArray(g, d["Matrix"]); ok && len(mx) == 9 {
		copy(s.Matrix[:], mx)
	}
	return s, nil
}

// SpaceLab is a CIE L*a*b* space. ToRGB applies the standard Lab->XYZ->sRGB
// pipeline relative to the declared white point, without chromatic
// adaptation to a fixed reference illuminant (out of scope, see
// DESIGN.md).
type SpaceLab struct {
	WhitePoint [3]float64
	BlackPoint [3]float64
	Range      [4]float64 // amin, amax, bmin, bmax
}

func (s *SpaceLab) Family() Name       { return "Lab" }
func (s *SpaceLab) NumComponents() int { return 3 }

func (s *SpaceLab) ToRGB(c []float64) (r, g, b float64) {
	L, a, bb := c[0], c[1], c[2]
	fy := (L + 16) / 116
	fx := fy + a/500
	fz := fy - bb/200

	finv := func(t float64) float64 {
		if t > 6.0/29.0 {
			return t * t * t
		}
		return 3 * (6.0 / 29.0) * (6.0 / 29.0) * (t - 4.0/29.0)
	}
	X := s.WhitePoint[0] * finv(fx)
	Y := s.WhitePoint[1] * finv(fy)
	Z := s.WhitePoint[2] * finv(fz)

	// XYZ (D50-relative, as PDF Lab spaces are defined) to linear sRGB.
	rl := 3.1338561*X - 1.6168667*Y - 0.4906146*Z
	gl := -0.9787684*X + 1.9161415*Y + 0.0334540*Z
	bl := 0.0719453*X - 0.2289914*Y + 1.4052427*Z

	gamma := func(v float64) float64 {
		v = clamp01(v)
		if v <= 0.0031308 {
			return 12.92 * v
		}
		return 1.055*math.Pow(v, 1/2.4) - 0.055
	}
	return gamma(rl), gamma(gl), gamma(bl)
}

func decodeLab(g Getter, d Dict) (*SpaceLab, error) {
	s := &SpaceLab{WhitePoint: [3]float64{0.9505, 1.0, 1.089}, Range: [4]float64{-100, 100, -100, 100}}
	if wp, ok := GetFloatArray(g, d["WhitePoint"]); ok && len(wp) == 3 {
		s.WhitePoint = [3]float64{wp[0], wp[1], wp[2]}
	}
	if bp, ok := GetFloatArray(g, d["BlackPoint"]); ok && len(bp) == 3 {
		s.BlackPoint = [3]float64{bp[0], bp[1], bp[2]}
	}
	if rg, ok := GetFloatArray(g, d["Range"]); ok && len(rg) == 4 {
		s.Range = [4]float64{rg[0], rg[1], rg[2], rg[3]}
	}
	return s, nil
}

// ---- ICCBased ----

// SpaceICCBased wraps an ICC profile stream. The profile is parsed only far
// enough to recover its declared component count and textual description
// (spec section on ColorProfile); full color management is a non-goal, so
// ToRGB falls back to Alternate (or a naive default space matching N) when
// converting.
type SpaceICCBased struct {
	N           int
	Alternate   Space
	Description string
}

func (s *SpaceICCBased) Family() Name       { return "ICCBased" }
func (s *SpaceICCBased) NumComponents() int { return s.N }
func (s *SpaceICCBased) ToRGB(c []float64) (r, g, b float64) {
	return s.Alternate.ToRGB(c)
}

func decodeICCBased(g Getter, st *Stream) (*SpaceICCBased, error) {
	s := &SpaceICCBased{}
	if n, ok := GetInteger(g, st.Dict["N"]); ok {
		s.N = int(n)
	}
	if altObj, ok := st.Dict["Alternate"]; ok {
		alt, err := DecodeColorSpace(g, altObj, nil)
		if err == nil {
			s.Alternate = alt
		}
	}

	f, ok := g.(*File)
	if ok {
		profile, err := f.DecodeStream(st)
		if err == nil {
			header, descr := parseICCHeader(profile)
			if s.N == 0 {
				s.N = header
			}
			s.Description = descr
		}
	}

	if s.Alternate == nil {
		s.Alternate = defaultAlternateFor(s.N)
	}
	return s, nil
}

func defaultAlternateFor(n int) Space {
	switch n {
	case 1:
		return DeviceGray{}
	case 4:
		return DeviceCMYK{}
	default:
		return DeviceRGB{}
	}
}

// parseICCHeader reads the fixed 128-byte ICC profile header (ICC.1:2010
// section 7.2) far enough to recover the declared color space signature
// (bytes 16-19) and, for the two sRGB profiles this module's own go.mod
// already vendors via seehuhn.de/go/icc, recognizes them by exact byte
// match rather than parsing their 'desc' tag table.
func parseICCHeader(profile []byte) (numComponents int, description string) {
	if bytes.Equal(profile, icc.SRGBv2Profile) || bytes.Equal(profile, icc.SRGBv4Profile) {
		return 3, "sRGB IEC61966-2.1"
	}
	if len(profile) < 20 {
		return 3, ""
	}
	sig := profile[16:20]
	switch string(sig) {
	case "GRAY":
		return 1, ""
	case "RGB ":
		return 3, ""
	case "CMYK":
		return 4, ""
	case "Lab ":
		return 3, ""
	default:
		return 3, ""
	}
}

// ---- Indexed ----

// SpaceIndexed is a palette space: components are a single integer index
// into a lookup table of base-space colors.
type SpaceIndexed struct {
	Base   Space
	HiVal  int
	Lookup []byte
}

func (s *SpaceIndexed) Family() Name       { return "Indexed" }
func (s *SpaceIndexed) NumComponents() int { return 1 }

func (s *SpaceIndexed) ToRGB(c []float64) (r, g, b float64) {
	idx := int(c[0])
	if idx < 0 {
		idx = 0
	}
	if idx > s.HiVal {
		idx = s.HiVal
	}
	n := s.Base.NumComponents()
	start := idx * n
	if start+n > len(s.Lookup) {
		return 0, 0, 0
	}
	comps := make([]float64, n)
	for i := 0; i < n; i++ {
		comps[i] = float64(s.Lookup[start+i]) / 255
	}
	return s.Base.ToRGB(comps)
}

func decodeIndexed(g Getter, arr Array, resources Dict) (*SpaceIndexed, error) {
	if len(arr) < 4 {
		return nil, errf(KindInvalid, -1, "Indexed color space array too short")
	}
	base, err := DecodeColorSpace(g, arr[1], resources)
	if err != nil {
		return nil, err
	}
	hival, _ := GetInteger(g, arr[2])

	var lookup []byte
	resolved, err := g.Resolve(arr[3])
	if err != nil {
		return nil, err
	}
	switch v := resolved.(type) {
	case String:
		lookup = []byte(v)
	case *Stream:
		f, ok := g.(*File)
		if !ok {
			return nil, errf(KindOther, -1, "Indexed lookup stream requires a *File getter")
		}
		lookup, err = f.DecodeStream(v)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errf(KindUnexpectedPrimitive, -1, "Indexed lookup table has unexpected type %T", v)
	}

	return &SpaceIndexed{Base: base, HiVal: int(hival), Lookup: lookup}, nil
}

// ---- Separation / DeviceN ----

// SpaceSeparation models a single named colorant, mapped to the alternate
// space through a tint-transform Function.
type SpaceSeparation struct {
	Names     []Name
	Alternate Space
	Tint      Function
}

func (s *SpaceSeparation) Family() Name {
	if len(s.Names) == 1 {
		return "Separation"
	}
	return "DeviceN"
}
func (s *SpaceSeparation) NumComponents() int { return len(s.Names) }

func (s *SpaceSeparation) ToRGB(c []float64) (r, g, b float64) {
	out := make([]float64, s.Alternate.NumComponents())
	s.Tint.Apply(out, c...)
	return s.Alternate.ToRGB(out)
}

func decodeSeparation(g Getter, arr Array, resources Dict) (*SpaceSeparation, error) {
	if len(arr) < 4 {
		return nil, errf(KindInvalid, -1, "Separation color space array too short")
	}
	name, ok := GetName(g, arr[1])
	if !ok {
		return nil, errf(KindUnexpectedPrimitive, -1, "Separation colorant name is not a name")
	}
	alt, err := DecodeColorSpace(g, arr[2], resources)
	if err != nil {
		return nil, err
	}
	tint, err := ReadFunction(g, arr[3])
	if err != nil {
		return nil, err
	}
	return &SpaceSeparation{Names: []Name{name}, Alternate: alt, Tint: tint}, nil
}

func decodeDeviceN(g Getter, arr Array, resources Dict) (*SpaceSeparation, error) {
	if len(arr) < 4 {
		return nil, errf(KindInvalid, -1, "DeviceN color space array too short")
	}
	namesArr, ok := GetArray(g, arr[1])
	if !ok {
		return nil, errf(KindUnexpectedPrimitive, -1, "DeviceN /Names is not an array")
	}
	names := make([]Name, len(namesArr))
	for i, n := range namesArr {
		nm, ok := GetName(g, n)
		if !ok {
			return nil, errf(KindUnexpectedPrimitive, -1, "DeviceN /Names entry is not a name")
		}
		names[i] = nm
	}
	alt, err := DecodeColorSpace(g, arr[2], resources)
	if err != nil {
		return nil, err
	}
	tint, err := ReadFunction(g, arr[3])
	if err != nil {
		return nil, err
	}
	return &SpaceSeparation{Names: names, Alternate: alt, Tint: tint}, nil
}

// ---- Pattern ----

// PatternSpace is the /Pattern color space; Base is non-nil for the
// "uncolored pattern" form, which carries underlying color components
// alongside the pattern name.
type PatternSpace struct {
	Base Space
}

func (s *PatternSpace) Family() Name { return "Pattern" }
func (s *PatternSpace) NumComponents() int {
	if s.Base != nil {
		return s.Base.NumComponents()
	}
	return 0
}
func (s *PatternSpace) ToRGB(c []float64) (r, g, b float64) {
	if s.Base != nil && len(c) > 0 {
		return s.Base.ToRGB(c)
	}
	return 0, 0, 0
}
