package pdf

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/xdg-go/stringprep"
)

// padBytes is the fixed 32-byte padding string from Algorithm 2.
var padBytes = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// CryptFilterMethod names the per-stream/string encryption algorithm.
type CryptFilterMethod int

const (
	CFMRC4 CryptFilterMethod = iota
	CFMAESV2
	CFMAESV3
	CFMIdentity
)

// EncryptInfo holds the parsed /Encrypt dictionary plus the derived file
// encryption key, ready to derive per-object keys or (for V=5) used
// directly.
type EncryptInfo struct {
	V, R       int
	Length     int // key length in bytes
	O, U       []byte
	OE, UE     []byte
	P          int32
	ID0        []byte
	Method     CryptFilterMethod
	EncryptMD  bool // encrypt metadata streams
	FileKey    []byte
}

// ParseEncryptDict reads the standard security handler's parameters from
// the /Encrypt dictionary and the trailer's /ID array.
func ParseEncryptDict(enc Dict, id0 []byte) (*EncryptInfo, error) {
	if f, _ := enc["Filter"].(Name); f != "" && f != "Standard" {
		return nil, errf(KindInvalid, -1, "unsupported security handler %q", f)
	}
	info := &EncryptInfo{ID0: id0, Method: CFMRC4, Length: 5}
	if v, ok := enc["V"].(Integer); ok {
		info.V = int(v)
	} else {
		info.V = 0
	}
	if r, ok := enc["R"].(Integer); ok {
		info.R = int(r)
	} else {
		return nil, errf(KindMissingEntry, -1, "/Encrypt missing /R")
	}
	if lv, ok := enc["Length"].(Integer); ok {
		info.Length = int(lv) / 8
	} else if info.V >= 2 {
		info.Length = 16
	}
	o, _ := enc["O"].(String)
	u, _ := enc["U"].(String)
	info.O = []byte(o)
	info.U = []byte(u)
	if oe, ok := enc["OE"].(String); ok {
		info.OE = []byte(oe)
	}
	if ue, ok := enc["UE"].(String); ok {
		info.UE = []byte(ue)
	}
	if p, ok := enc["P"].(Integer); ok {
		info.P = int32(p)
	}
	if em, ok := enc["EncryptMetadata"].(Boolean); ok {
		info.EncryptMD = bool(em)
	} else {
		info.EncryptMD = true
	}

	if info.V == 4 || info.V == 5 {
		if cf, ok := enc["CF"].(Dict); ok {
			stmF, _ := enc["StmF"].(Name)
			if cfDict, ok := cf[stmF].(Dict); ok {
				if cfm, ok := cfDict["CFM"].(Name); ok {
					switch cfm {
					case "AESV2":
						info.Method = CFMAESV2
						info.Length = 16
					case "AESV3":
						info.Method = CFMAESV3
						info.Length = 32
					case "V2":
						info.Method = CFMRC4
					case "Identity":
						info.Method = CFMIdentity
					}
				}
			}
		}
	}
	return info, nil
}

// padPassword pads or truncates pw to 32 bytes using padBytes per
// Algorithm 2 step (a).
func padPassword(pw []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, pw)
	copy(out[n:], padBytes)
	return out
}

// ComputeFileKey implements Algorithm 2: derive the file encryption key
// from the user password.
func (info *EncryptInfo) ComputeFileKey(userPassword []byte) []byte {
	h := md5.New()
	h.Write(padPassword(userPassword))
	h.Write(info.O)
	var pBuf [4]byte
	pBuf[0] = byte(info.P)
	pBuf[1] = byte(info.P >> 8)
	pBuf[2] = byte(info.P >> 16)
	pBuf[3] = byte(info.P >> 24)
	h.Write(pBuf[:])
	h.Write(info.ID0)
	if info.R >= 4 && !info.EncryptMD {
		h.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	key := h.Sum(nil)
	if info.R >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key[:info.Length])
			key = sum[:]
		}
	}
	return key[:info.Length]
}

// ComputeO implements Algorithm 3: compute the /O entry from the owner and
// user passwords (used to verify a supplied owner password, or to
// construct a fresh /Encrypt dictionary — not needed for reading but kept
// symmetric with ComputeU for testability).
func (info *EncryptInfo) ComputeO(ownerPassword, userPassword []byte) []byte {
	h := md5.New()
	h.Write(padPassword(ownerPassword))
	key := h.Sum(nil)
	if info.R >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key)
			key = sum[:]
		}
	}
	key = key[:info.Length]

	rc4Key := append([]byte{}, key...)
	data := padPassword(userPassword)
	data = rc4Crypt(rc4Key, data)
	if info.R >= 3 {
		for i := 1; i <= 19; i++ {
			round := xorKey(rc4Key, byte(i))
			data = rc4Crypt(round, data)
		}
	}
	return data
}

// ComputeU implements Algorithm 4 (R2) / Algorithm 5 (R>=3) to derive the
// expected /U entry from the file key, for password validation.
func (info *EncryptInfo) ComputeU(fileKey []byte) []byte {
	if info.R == 2 {
		return rc4Crypt(fileKey, append([]byte{}, padBytes...))
	}
	h := md5.New()
	h.Write(padBytes)
	h.Write(info.ID0)
	digest := h.Sum(nil)
	enc := rc4Crypt(fileKey, digest)
	for i := 1; i <= 19; i++ {
		round := xorKey(fileKey, byte(i))
		enc = rc4Crypt(round, enc)
	}
	out := make([]byte, 32)
	copy(out, enc)
	return out
}

func xorKey(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i, k := range key {
		out[i] = k ^ b
	}
	return out
}

func rc4Crypt(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		// Only possible with a zero-length key, which ParseEncryptDict
		// never produces.
		return data
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// Authenticate checks pw and returns the file encryption key on success.
// For V=5 pw is tried as the user and then the owner password; for earlier
// versions it is checked only as the user password, so an owner password
// is not recognized there.
func (info *EncryptInfo) Authenticate(pw string) ([]byte, error) {
	if info.V == 5 {
		return info.authenticateR6(pw)
	}
	key := info.ComputeFileKey([]byte(pw))
	expected := info.ComputeU(key)
	cmpLen := 32
	if info.R == 2 {
		cmpLen = 32
	} else {
		cmpLen = 16
	}
	if bytes.Equal(expected[:cmpLen], info.U[:min(cmpLen, len(info.U))]) {
		return key, nil
	}
	return nil, &AuthenticationError{ID: info.ID0}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// authenticateR6 implements the R5/R6 (V=5, AES-256) password check:
// SASLprep-normalize the password, hash it against the validation salt
// embedded in /U or /O, and on success unwrap /UE or /OE with the
// intermediate key to recover the 32-byte file encryption key directly.
func (info *EncryptInfo) authenticateR6(pw string) ([]byte, error) {
	normalized, err := stringprep.SASLprep.Prepare(pw)
	if err != nil {
		normalized = pw // tolerate passwords stringprep rejects outright
	}
	pwBytes := []byte(normalized)

	if len(info.U) < 48 {
		return nil, &AuthenticationError{ID: info.ID0}
	}
	uHash := info.U[:32]
	uValidationSalt := info.U[32:40]
	uKeySalt := info.U[40:48]

	hash := hardenedHash(pwBytes, uValidationSalt, nil, info.R)
	if bytes.Equal(hash, uHash) {
		interKey := hardenedHash(pwBytes, uKeySalt, nil, info.R)
		return aesCBCNoPadding(interKey, info.UE)
	}

	if len(info.O) >= 48 {
		oHash := info.O[:32]
		oValidationSalt := info.O[32:40]
		oKeySalt := info.O[40:48]
		hash = hardenedHash(pwBytes, oValidationSalt, info.U[:48], info.R)
		if bytes.Equal(hash, oHash) {
			interKey := hardenedHash(pwBytes, oKeySalt, info.U[:48], info.R)
			return aesCBCNoPadding(interKey, info.OE)
		}
	}
	return nil, &AuthenticationError{ID: info.ID0}
}

// hardenedHash implements Algorithm 2.B: R5 is a plain SHA-256; R6 iterates
// a SHA-256/384/512 round function at least 64 times, continuing until the
// last byte of the round's AES output is <= (rounds completed) - 32.
func hardenedHash(password, salt, udata []byte, revision int) []byte {
	input := append(append(append([]byte{}, password...), salt...), udata...)
	k := sha256sum(input)
	if revision < 6 {
		return k
	}
	for round := 0; ; round++ {
		k1 := make([]byte, 0, 64*(len(password)+len(k)+len(udata)))
		for i := 0; i < 64; i++ {
			k1 = append(k1, password...)
			k1 = append(k1, k...)
			k1 = append(k1, udata...)
		}
		e := aesCBCEncryptNoPadding(k[:16], k[16:32], k1)
		mod := sumMod3(e)
		switch mod {
		case 0:
			k = sha256sum(e)
		case 1:
			k = sha384sum(e)
		case 2:
			k = sha512sum(e)
		}
		if round >= 63 && int(e[len(e)-1]) <= round+1-32 {
			break
		}
	}
	return k[:32]
}

func sumMod3(data []byte) int {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return sum % 3
}

func sha256sum(b []byte) []byte { s := sha256.Sum256(b); return s[:] }
func sha384sum(b []byte) []byte { s := sha512.Sum384(b); return s[:] }
func sha512sum(b []byte) []byte { s := sha512.Sum512(b); return s[:] }

func aesCBCEncryptNoPadding(key, iv, data []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		return data
	}
	out := make([]byte, len(data))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out, data)
	return out
}

func aesCBCNoPadding(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapf(KindDecryptionFailure, -1, err, "AES key setup failed")
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, data)
	return out, nil
}

// ObjectKey derives the per-object key (Algorithm 1) used to decrypt
// strings and stream bodies belonging to (num, gen).
func (info *EncryptInfo) ObjectKey(num uint32, gen uint16) []byte {
	if info.V == 5 {
		return info.FileKey // V=5 uses the file key directly, no per-object salting
	}
	h := md5.New()
	h.Write(info.FileKey)
	h.Write([]byte{byte(num), byte(num >> 8), byte(num >> 16)})
	h.Write([]byte{byte(gen), byte(gen >> 8)})
	if info.Method == CFMAESV2 {
		h.Write([]byte("sAlT"))
	}
	sum := h.Sum(nil)
	n := min(len(info.FileKey)+5, 16)
	return sum[:n]
}

// DecryptBytes decrypts a string or stream body belonging to (num, gen)
// using the configured cipher.
func (info *EncryptInfo) DecryptBytes(data []byte, num uint32, gen uint16) ([]byte, error) {
	if info.Method == CFMIdentity {
		return data, nil
	}
	key := info.ObjectKey(num, gen)
	switch info.Method {
	case CFMAESV2, CFMAESV3:
		if len(data) < aes.BlockSize {
			return nil, errf(KindDecryptionFailure, -1, "ciphertext shorter than AES block size")
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, wrapf(KindDecryptionFailure, -1, err, "AES key setup failed")
		}
		iv := data[:aes.BlockSize]
		ciphertext := data[aes.BlockSize:]
		if len(ciphertext)%aes.BlockSize != 0 {
			return nil, errf(KindDecryptionFailure, -1, "ciphertext not a multiple of the AES block size")
		}
		out := make([]byte, len(ciphertext))
		mode := cipher.NewCBCDecrypter(block, iv)
		mode.CryptBlocks(out, ciphertext)
		return unpadPKCS7(out), nil
	default:
		return rc4Crypt(key, data), nil
	}
}

func unpadPKCS7(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	n := int(data[len(data)-1])
	if n <= 0 || n > len(data) || n > aes.BlockSize {
		return data
	}
	return data[:len(data)-n]
}
