package pdf

import (
	"math"

	"seehuhn.de/go/postscript"
)

// Function is implemented by the four PDF function types (/FunctionType 0,
// 2, 3 and 4). Apply evaluates the function at inputs, writing outputs
// into result (which must already have the right length).
type Function interface {
	Apply(result []float64, inputs ...float64)
	domain() []float64
	rang() []float64
}

// ReadFunction decodes a PDF function object (a stream for type 0 and 4, a
// plain dictionary for type 2 and 3).
func ReadFunction(g Getter, obj Object) (Function, error) {
	resolved, err := g.Resolve(obj)
	if err != nil {
		return nil, err
	}

	var d Dict
	var stream *Stream
	switch v := resolved.(type) {
	case *Stream:
		d = v.Dict
		stream = v
	case Dict:
		d = v
	case Array:
		// An array of 1-in/1-out functions, one per output component, is a
		// common shorthand producers use in place of a single multi-output
		// function (seen e.g. as a /TintTransform for DeviceN spaces).
		fns := make([]Function, len(v))
		for i, el := range v {
			fn, err := ReadFunction(g, el)
			if err != nil {
				return nil, err
			}
			fns[i] = fn
		}
		return &arrayFunction{fns: fns}, nil
	default:
		return nil, errf(KindUnexpectedPrimitive, -1, "function object has unexpected type %T", v)
	}

	ft, ok := GetInteger(g, d["FunctionType"])
	if !ok {
		return nil, errf(KindMissingEntry, -1, "function dictionary missing /FunctionType")
	}
	domain, _ := GetFloatArray(g, d["Domain"])
	rang, _ := GetFloatArray(g, d["Range"])

	switch ft {
	case 0:
		if stream == nil {
			return nil, errf(KindWrongDictionaryType, -1, "type 0 function must be a stream")
		}
		return readType0(g, stream, domain, rang)
	case 2:
		return readType2(g, d, domain, rang)
	case 3:
		return readType3(g, d, domain, rang)
	case 4:
		if stream == nil {
			return nil, errf(KindWrongDictionaryType, -1, "type 4 function must be a stream")
		}
		return readType4(g, stream, domain, rang)
	default:
		return nil, errf(KindUnexpectedPrimitive, -1, "unsupported /FunctionType %d", ft)
	}
}

// arrayFunction adapts an array of scalar functions into one multi-output
// Function, component i of the output coming from fns[i].
type arrayFunction struct {
	fns []Function
}

func (a *arrayFunction) domain() []float64 { return a.fns[0].domain() }
func (a *arrayFunction) rang() []float64   { return nil }

func (a *arrayFunction) Apply(result []float64, inputs ...float64) {
	tmp := make([]float64, 1)
	for i, fn := range a.fns {
		fn.Apply(tmp, inputs...)
		result[i] = tmp[0]
	}
}

// clipDomain clamps inputs against domain pairs [min0,max0, min1,max1, ...],
// matching every PDF function type's requirement that out-of-range inputs
// be clipped rather than rejected.
func clipDomain(domain []float64, inputs []float64) []float64 {
	out := make([]float64, len(inputs))
	copy(out, inputs)
	for i := range out {
		if 2*i+1 >= len(domain) {
			break
		}
		lo, hi := domain[2*i], domain[2*i+1]
		if out[i] < lo {
			out[i] = lo
		} else if out[i] > hi {
			out[i] = hi
		}
	}
	return out
}

func clipRange(rang []float64, outputs []float64) {
	for i := range outputs {
		if 2*i+1 >= len(rang) {
			return
		}
		lo, hi := rang[2*i], rang[2*i+1]
		if outputs[i] < lo {
			outputs[i] = lo
		} else if outputs[i] > hi {
			outputs[i] = hi
		}
	}
}

// interpolate is PDF's linear interpolation primitive (spec section 7.10.5).
func interpolate(x, xmin, xmax, ymin, ymax float64) float64 {
	if xmax == xmin {
		return ymin
	}
	return ymin + (x-xmin)*(ymax-ymin)/(xmax-xmin)
}

// ---- Type 2: exponential interpolation ----

// Type2 implements an exponential-interpolation function (/FunctionType 2).
type Type2 struct {
	XMin, XMax float64
	Range      []float64
	C0, C1     []float64
	N          float64
}

func readType2(g Getter, d Dict, domain, rang []float64) (*Type2, error) {
	if len(domain) < 2 {
		domain = []float64{0, 1}
	}
	fn := &Type2{XMin: domain[0], XMax: domain[1], Range: rang}
	if c0, ok := GetFloatArray(g, d["C0"]); ok {
		fn.C0 = c0
	} else {
		fn.C0 = []float64{0}
	}
	if c1, ok := GetFloatArray(g, d["C1"]); ok {
		fn.C1 = c1
	} else {
		fn.C1 = []float64{1}
	}
	if n, ok := GetNumber(g, d["N"]); ok {
		fn.N = n
	} else {
		fn.N = 1
	}
	return fn, nil
}

func (f *Type2) domain() []float64 { return []float64{f.XMin, f.XMax} }
func (f *Type2) rang() []float64   { return f.Range }

func (f *Type2) Apply(result []float64, inputs ...float64) {
	x := inputs[0]
	if x < f.XMin {
		x = f.XMin
	} else if x > f.XMax {
		x = f.XMax
	}
	xn := math.Pow(x, f.N)
	for i := range result {
		c0, c1 := 0.0, 1.0
		if i < len(f.C0) {
			c0 = f.C0[i]
		}
		if i < len(f.C1) {
			c1 = f.C1[i]
		}
		result[i] = c0 + xn*(c1-c0)
	}
	clipRange(f.Range, result)
}

// ---- Type 3: stitching function ----

// Type3 implements a stitching function (/FunctionType 3) that partitions
// its domain among a sequence of subfunctions.
type Type3 struct {
	XMin, XMax float64
	Range      []float64
	Functions  []Function
	Bounds     []float64
	Encode     []float64
}

func readType3(g Getter, d Dict, domain, rang []float64) (*Type3, error) {
	if len(domain) < 2 {
		domain = []float64{0, 1}
	}
	fn := &Type3{XMin: domain[0], XMax: domain[1], Range: rang}
	funcsArr, ok := GetArray(g, d["Functions"])
	if !ok {
		return nil, errf(KindMissingEntry, -1, "type 3 function missing /Functions")
	}
	for _, fo := range funcsArr {
		sub, err := ReadFunction(g, fo)
		if err != nil {
			return nil, err
		}
		fn.Functions = append(fn.Functions, sub)
	}
	fn.Bounds, _ = GetFloatArray(g, d["Bounds"])
	fn.Encode, _ = GetFloatArray(g, d["Encode"])
	return fn, nil
}

func (f *Type3) domain() []float64 { return []float64{f.XMin, f.XMax} }
func (f *Type3) rang() []float64   { return f.Range }

// findSubdomain returns which subfunction governs x, and the [a,b] domain
// bounds of that subdomain. Every boundary belongs to the interval to its
// right, i.e. intervals are [Bounds[i-1], Bounds[i]) — except that the
// degenerate case XMin == Bounds[0] collapses the first interval to the
// single point [XMin, XMin], per PDF spec section 7.10.4.
func (f *Type3) findSubdomain(x float64) (k int, a, b float64) {
	if len(f.Bounds) > 0 && f.Bounds[0] == f.XMin && x == f.XMin {
		return 0, f.XMin, f.XMin
	}
	k = len(f.Functions) - 1
	for i, bound := range f.Bounds {
		if x < bound {
			k = i
			break
		}
	}
	a = f.XMin
	if k > 0 {
		a = f.Bounds[k-1]
	}
	b = f.XMax
	if k < len(f.Bounds) {
		b = f.Bounds[k]
	}
	return k, a, b
}

func (f *Type3) Apply(result []float64, inputs ...float64) {
	x := inputs[0]
	if x < f.XMin {
		x = f.XMin
	} else if x > f.XMax {
		x = f.XMax
	}
	k, a, b := f.findSubdomain(x)

	elo, ehi := 0.0, 1.0
	if 2*k+1 < len(f.Encode) {
		elo, ehi = f.Encode[2*k], f.Encode[2*k+1]
	}
	xe := interpolate(x, a, b, elo, ehi)

	f.Functions[k].Apply(result, xe)
	clipRange(f.Range, result)
}

// ---- Type 0: sampled function ----

// Type0 implements a sampled function (/FunctionType 0) backed by a table
// of uniformly spaced samples, interpolated multilinearly. Cubic spline
// interpolation (/Order 3) is not performed: Apply ignores UseCubic.
type Type0 struct {
	Domain        []float64
	Range         []float64
	Size          []int
	BitsPerSample int
	Encode        []float64
	Decode        []float64
	UseCubic      bool
	Samples       []byte
}

func readType0(g Getter, s *Stream, domain, rang []float64) (*Type0, error) {
	fn := &Type0{Domain: domain, Range: rang}
	sizeArr, ok := GetArray(g, s.Dict["Size"])
	if !ok {
		return nil, errf(KindMissingEntry, -1, "type 0 function missing /Size")
	}
	for _, el := range sizeArr {
		n, ok := GetInteger(g, el)
		if !ok {
			return nil, errf(KindUnexpectedPrimitive, -1, "/Size entry is not an integer")
		}
		fn.Size = append(fn.Size, int(n))
	}
	bps, ok := GetInteger(g, s.Dict["BitsPerSample"])
	if !ok {
		return nil, errf(KindMissingEntry, -1, "type 0 function missing /BitsPerSample")
	}
	fn.BitsPerSample = int(bps)
	fn.Encode, _ = GetFloatArray(g, s.Dict["Encode"])
	fn.Decode, _ = GetFloatArray(g, s.Dict["Decode"])
	if order, ok := GetName(g, s.Dict["Order"]); ok && order == "3" {
		fn.UseCubic = true
	}

	f, ok := g.(*File)
	if !ok {
		return nil, errf(KindOther, -1, "type 0 function requires a *File getter")
	}
	samples, err := f.DecodeStream(s)
	if err != nil {
		return nil, err
	}
	fn.Samples = samples
	fn.repair()
	return fn, nil
}

func (f *Type0) domain() []float64 { return f.Domain }
func (f *Type0) rang() []float64   { return f.Range }

// repair fills in the encode/decode defaults PDF allows producers to omit:
// Encode defaults to [0, Size_i - 1] per dimension and Decode defaults to
// a copy of Range.
func (f *Type0) repair() {
	m := len(f.Size)
	if len(f.Encode) < 2*m {
		f.Encode = make([]float64, 2*m)
		for i, n := range f.Size {
			f.Encode[2*i] = 0
			f.Encode[2*i+1] = float64(n - 1)
		}
	}
	if len(f.Decode) < len(f.Range) {
		f.Decode = append([]float64(nil), f.Range...)
	}
}

// numOutputs is len(Range)/2, the number of samples packed per grid point.
func (f *Type0) numOutputs() int { return len(f.Range) / 2 }

// extractSampleAtIndex reads the sample at flat position index for the
// first output component (component 0); callers needing other components
// use extractSample directly.
func (f *Type0) extractSampleAtIndex(index int) float64 {
	return f.extractSample(index, 0)
}

// extractSample reads the raw (undecoded) sample value for grid point
// index and output component comp, as a big-endian bit-packed unsigned
// integer of BitsPerSample bits.
func (f *Type0) extractSample(index, comp int) float64 {
	n := f.numOutputs()
	if n == 0 {
		n = 1
	}
	bitOffset := (index*n + comp) * f.BitsPerSample
	return float64(readBits(f.Samples, bitOffset, f.BitsPerSample))
}

func readBits(data []byte, bitOffset, nbits int) uint64 {
	var v uint64
	for i := 0; i < nbits; i++ {
		byteIdx := (bitOffset + i) / 8
		bitIdx := 7 - (bitOffset+i)%8
		if byteIdx >= len(data) {
			break
		}
		bit := (data[byteIdx] >> uint(bitIdx)) & 1
		v = v<<1 | uint64(bit)
	}
	return v
}

func (f *Type0) Apply(result []float64, inputs ...float64) {
	m := len(f.Size)
	clamped := clipDomain(f.Domain, inputs)

	// Map each input through Encode into a fractional sample-grid position,
	// then clamp to the valid index range for that dimension.
	e := make([]float64, m)
	lo := make([]int, m)
	frac := make([]float64, m)
	for i := 0; i < m; i++ {
		dlo, dhi := f.Domain[2*i], f.Domain[2*i+1]
		elo, ehi := f.Encode[2*i], f.Encode[2*i+1]
		ei := interpolate(clamped[i], dlo, dhi, elo, ehi)
		maxIdx := float64(f.Size[i] - 1)
		if ei < 0 {
			ei = 0
		} else if ei > maxIdx {
			ei = maxIdx
		}
		e[i] = ei
		lo[i] = int(math.Floor(ei))
		if lo[i] >= f.Size[i]-1 {
			lo[i] = maxInt(f.Size[i]-2, 0)
		}
		frac[i] = ei - float64(lo[i])
	}

	n := f.numOutputs()
	if n == 0 {
		n = 1
	}
	maxSample := float64((uint64(1) << uint(f.BitsPerSample)) - 1)

	// Multilinear interpolation over the 2^m corners of the enclosing cell.
	for comp := 0; comp < n && comp < len(result); comp++ {
		var acc float64
		corners := 1 << m
		for c := 0; c < corners; c++ {
			weight := 1.0
			idx := make([]int, m)
			for i := 0; i < m; i++ {
				bit := (c >> i) & 1
				if bit == 1 {
					idx[i] = lo[i] + 1
					weight *= frac[i]
				} else {
					idx[i] = lo[i]
					weight *= 1 - frac[i]
				}
			}
			if weight == 0 {
				continue
			}
			flat := flattenIndex(idx, f.Size)
			raw := f.extractSample(flat, comp)
			acc += weight * raw
		}

		dlo, dhi := 0.0, 1.0
		if 2*comp+1 < len(f.Decode) {
			dlo, dhi = f.Decode[2*comp], f.Decode[2*comp+1]
		}
		result[comp] = interpolate(acc, 0, maxSample, dlo, dhi)
	}
	clipRange(f.Range, result)
}

// flattenIndex converts a multi-dimensional sample coordinate into the flat
// index PDF's sample table uses, where the first dimension varies fastest.
func flattenIndex(idx []int, size []int) int {
	flat := 0
	stride := 1
	for i := range idx {
		flat += idx[i] * stride
		stride *= size[i]
	}
	return flat
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ---- Type 4: PostScript calculator function ----

// Type4 implements a PostScript calculator function (/FunctionType 4),
// evaluated by running Program through a restricted PostScript interpreter
// that supports the subset of operators PDF's calculator functions allow
// (arithmetic, comparison, stack manipulation and if/ifelse).
type Type4 struct {
	Domain  []float64
	Range   []float64
	Program string
}

func readType4(g Getter, s *Stream, domain, rang []float64) (*Type4, error) {
	f, ok := g.(*File)
	if !ok {
		return nil, errf(KindOther, -1, "type 4 function requires a *File getter")
	}
	body, err := f.DecodeStream(s)
	if err != nil {
		return nil, err
	}
	fn := &Type4{Domain: domain, Range: rang, Program: string(body)}
	fn.repair()
	return fn, nil
}

func (f *Type4) domain() []float64 { return f.Domain }
func (f *Type4) rang() []float64   { return f.Range }

func (f *Type4) repair() {
	if len(f.Domain) == 0 {
		f.Domain = []float64{0, 1}
	}
	if len(f.Range) == 0 {
		f.Range = []float64{0, 1}
	}
}

// calculatorOps is the subset of PostScript operator names PDF calculator
// functions are permitted to use (spec section 7.10.5.2).
var calculatorOps = []string{
	"abs", "add", "atan", "ceiling", "cos", "cvi", "cvr", "div", "exp",
	"floor", "idiv", "ln", "log", "mod", "mul", "neg", "round", "sin",
	"sqrt", "sub", "truncate",
	"and", "bitshift", "eq", "ge", "gt", "le", "lt", "ne", "not", "or", "xor",
	"if", "ifelse",
	"copy", "dup", "exch", "index", "pop", "roll",
}

func (f *Type4) Apply(result []float64, inputs ...float64) {
	clamped := clipDomain(f.Domain, inputs)

	intp := postscript.NewInterpreter()
	calcDict := postscript.Dict{
		"true":  postscript.Boolean(true),
		"false": postscript.Boolean(false),
	}
	for _, name := range calculatorOps {
		if impl, ok := intp.SystemDict[postscript.Name(name)]; ok {
			calcDict[postscript.Name(name)] = impl
		}
	}
	intp.DictStack = []postscript.Dict{calcDict, {}}
	intp.SystemDict = calcDict

	for _, x := range clamped {
		intp.Stack = append(intp.Stack, postscript.Real(x))
	}

	if err := intp.ExecuteString(f.Program); err != nil {
		// A malformed calculator program leaves the output undefined;
		// zero-fill rather than propagate, matching how a content-stream
		// interpreter tolerates a bad /Function without aborting the page.
		for i := range result {
			result[i] = 0
		}
		return
	}

	n := len(result)
	stack := intp.Stack
	if len(stack) < n {
		for i := range result {
			result[i] = 0
		}
		return
	}
	stack = stack[len(stack)-n:]
	for i, obj := range stack {
		switch v := obj.(type) {
		case postscript.Integer:
			result[i] = float64(v)
		case postscript.Real:
			result[i] = float64(v)
		case postscript.Boolean:
			if v {
				result[i] = 1
			} else {
				result[i] = 0
			}
		default:
			result[i] = 0
		}
	}
	clipRange(f.Range, result)
}
