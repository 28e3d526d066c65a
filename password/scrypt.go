package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"strconv"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	algorithmID = "scrypt"

	// DefaultLogN is the default log2 CPU/memory cost (N = 32768).
	DefaultLogN uint8 = 15
	// DefaultBlockSize is the default scrypt block size r.
	DefaultBlockSize uint32 = 8
	// DefaultParallelism is the default scrypt parallelism p.
	DefaultParallelism uint32 = 1
	// DefaultSaltLength is the number of random bytes drawn for generated salts.
	DefaultSaltLength uint32 = 16
	// DefaultKeyLength is the derived key length embedded in PHC strings.
	DefaultKeyLength uint32 = 32

	// MinSaltChars and MaxSaltChars bound the B64 salt text of a PHC string.
	MinSaltChars = 4
	MaxSaltChars = 64
	// MinOutputLength and MaxOutputLength bound the hash embedded in a PHC string.
	MinOutputLength = 10
	MaxOutputLength = 64

	maxInt = int(^uint(0) >> 1)
)

var (
	// ErrInvalidParams is returned when N, r, or p cannot be handed to scrypt.
	ErrInvalidParams = errors.New("invalid scrypt parameters")
	// ErrInvalidSalt is returned when a salt cannot be represented as PHC B64 text.
	ErrInvalidSalt = errors.New("invalid salt encoding")
	// ErrInvalidKeyLength is returned for derived key lengths outside the supported range.
	ErrInvalidKeyLength = errors.New("invalid key length")
	// ErrKeyDerivation wraps failures reported by the scrypt primitive.
	ErrKeyDerivation = errors.New("scrypt key derivation failed")
	// ErrInvalidPHC is returned when an encoded hash is not well-formed.
	ErrInvalidPHC = errors.New("invalid PHC format")
	// ErrUnsupportedAlgorithm is returned for PHC strings of another algorithm.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
)

// b64 is the PHC "B64" alphabet: standard base64 without padding.
var b64 = base64.RawStdEncoding.Strict()

// Params are normalized scrypt cost parameters. N is always 1 << LogN.
type Params struct {
	LogN uint8
	R    uint32
	P    uint32
}

// DefaultParams returns ln=15, r=8, p=1.
func DefaultParams() Params {
	return Params{LogN: DefaultLogN, R: DefaultBlockSize, P: DefaultParallelism}
}

// N returns the CPU/memory cost 2^LogN. It is zero when LogN does not fit.
func (p Params) N() uint64 {
	if p.LogN >= 64 {
		return 0
	}
	return uint64(1) << p.LogN
}

// MemoryCost estimates the bytes scrypt allocates for p: 128*r*(N+p).
func (p Params) MemoryCost() uint64 {
	n := p.N()
	hi, lo := bits.Mul64(128*uint64(p.R), n+uint64(p.P))
	if hi != 0 {
		return ^uint64(0)
	}
	return lo
}

func (p Params) String() string {
	return fmt.Sprintf("ln=%d,r=%d,p=%d", p.LogN, p.R, p.P)
}

// Validate checks p against RFC 7914 and the buffer sizing limits of
// golang.org/x/crypto/scrypt, so an invalid set never reaches the primitive.
func (p Params) Validate() error {
	if p.LogN == 0 {
		return fmt.Errorf("%w: ln must be >= 1", ErrInvalidParams)
	}
	if p.R == 0 {
		return fmt.Errorf("%w: r must be >= 1", ErrInvalidParams)
	}
	if p.P == 0 {
		return fmt.Errorf("%w: p must be >= 1", ErrInvalidParams)
	}
	if int(p.LogN) >= bits.UintSize-1 {
		return fmt.Errorf("%w: ln=%d overflows N", ErrInvalidParams, p.LogN)
	}
	// RFC 7914: N must be less than 2^(128*r/8).
	if uint64(p.LogN) >= 16*uint64(p.R) {
		return fmt.Errorf("%w: ln must be < 16*r", ErrInvalidParams)
	}
	if uint64(p.R)*uint64(p.P) >= 1<<30 {
		return fmt.Errorf("%w: r*p must be < 2^30", ErrInvalidParams)
	}

	r, par, n := uint64(p.R), uint64(p.P), p.N()
	limit := uint64(maxInt)
	if r > limit/128/par || r > limit/256 || n > limit/128/r {
		return fmt.Errorf("%w: parameters are too large", ErrInvalidParams)
	}

	return nil
}

// LogNFromN converts a raw cost N to its exponent, floor(log2(N)).
// N values below 2 have no valid exponent.
func LogNFromN(n uint64) (uint8, error) {
	if n < 2 {
		return 0, fmt.Errorf("%w: N must be >= 2", ErrInvalidParams)
	}
	return uint8(bits.Len64(n) - 1), nil
}

// Key derives keyLen bytes from password and salt. The salt is used verbatim.
func Key(password, salt []byte, params Params, keyLen int) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if keyLen < 1 {
		return nil, fmt.Errorf("%w: key length must be >= 1", ErrInvalidKeyLength)
	}

	key, err := scrypt.Key(password, salt, int(params.N()), int(params.R), int(params.P), keyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}

	return key, nil
}

// EncodeSalt renders raw salt bytes as PHC B64 text and checks its length.
func EncodeSalt(salt []byte) (string, error) {
	text := b64.EncodeToString(salt)
	if err := checkSaltText(text); err != nil {
		return "", err
	}
	return text, nil
}

// DecodeSalt validates PHC B64 salt text and returns the bytes fed to scrypt.
func DecodeSalt(text string) ([]byte, error) {
	if err := checkSaltText(text); err != nil {
		return nil, err
	}
	salt, err := b64.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSalt, err)
	}
	return salt, nil
}

func checkSaltText(text string) error {
	if len(text) < MinSaltChars || len(text) > MaxSaltChars {
		return fmt.Errorf("%w: salt must be %d..%d B64 characters", ErrInvalidSalt, MinSaltChars, MaxSaltChars)
	}
	return nil
}

// PHC is a parsed scrypt hash string.
type PHC struct {
	Params Params
	// Salt is the B64 salt text exactly as it appears in the string.
	Salt string
	Hash []byte
}

// String renders h as $scrypt$ln=..,r=..,p=..$<salt>$<hash>.
func (h PHC) String() string {
	return fmt.Sprintf(
		"$%s$%s$%s$%s",
		algorithmID,
		h.Params.String(),
		h.Salt,
		b64.EncodeToString(h.Hash),
	)
}

// ParsePHC parses an encoded scrypt hash. It checks structure and encodings
// only; callers validate the recovered Params before deriving.
func ParsePHC(encodedHash string) (*PHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 || parts[0] != "" {
		return nil, ErrInvalidPHC
	}

	if parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, parts[1])
	}

	params, err := parseParams(parts[2])
	if err != nil {
		return nil, err
	}

	if _, err := DecodeSalt(parts[3]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPHC, err)
	}

	hash, err := b64.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hash encoding", ErrInvalidPHC)
	}
	if len(hash) < MinOutputLength || len(hash) > MaxOutputLength {
		return nil, fmt.Errorf("%w: invalid hash length", ErrInvalidPHC)
	}

	return &PHC{
		Params: params,
		Salt:   parts[3],
		Hash:   hash,
	}, nil
}

func parseParams(part string) (Params, error) {
	var params Params

	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return params, fmt.Errorf("%w: invalid parameter format", ErrInvalidPHC)
	}

	var logNSet, rSet, pSet bool
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return params, fmt.Errorf("%w: invalid parameter entry", ErrInvalidPHC)
		}

		switch kv[0] {
		case "ln":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || logNSet {
				return params, fmt.Errorf("%w: invalid ln parameter", ErrInvalidPHC)
			}
			params.LogN = uint8(v)
			logNSet = true
		case "r":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || rSet {
				return params, fmt.Errorf("%w: invalid r parameter", ErrInvalidPHC)
			}
			params.R = uint32(v)
			rSet = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || pSet {
				return params, fmt.Errorf("%w: invalid p parameter", ErrInvalidPHC)
			}
			params.P = uint32(v)
			pSet = true
		default:
			return params, fmt.Errorf("%w: unsupported parameter %q", ErrInvalidPHC, kv[0])
		}
	}

	if !logNSet || !rSet || !pSet {
		return params, fmt.Errorf("%w: missing parameters", ErrInvalidPHC)
	}

	return params, nil
}

// Config configures a [Scrypt] hasher.
type Config struct {
	Params     Params
	SaltLength uint32
	KeyLength  uint32
}

// Scrypt hashes and verifies passwords as PHC strings with fixed parameters.
//
// Scrypt values are immutable after [NewScrypt] and safe for concurrent use.
type Scrypt struct {
	config Config
	rand   io.Reader
}

// NewScrypt validates cfg and returns a hasher.
func NewScrypt(cfg Config) (*Scrypt, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Scrypt{config: cfg, rand: rand.Reader}, nil
}

// Config returns the hasher configuration.
func (s *Scrypt) Config() Config {
	return s.config
}

// Hash hashes password with a fresh random salt.
func (s *Scrypt) Hash(password string) (string, error) {
	salt := make([]byte, s.config.SaltLength)
	if _, err := io.ReadFull(s.rand, salt); err != nil {
		return "", err
	}

	text, err := EncodeSalt(salt)
	if err != nil {
		return "", err
	}

	return s.HashWithSalt(password, text)
}

// HashWithSalt hashes password with caller-supplied B64 salt text.
func (s *Scrypt) HashWithSalt(password string, salt string) (string, error) {
	return Encode([]byte(password), salt, s.config.Params, s.config.KeyLength)
}

// Verify reports whether password matches encodedHash. Parameters are taken
// from the hash, not from the hasher configuration.
func (s *Scrypt) Verify(password string, encodedHash string) (bool, error) {
	parsed, err := ParsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	return parsed.Matches([]byte(password))
}

// Encode derives a keyLen-byte hash and returns its PHC string.
func Encode(password []byte, salt string, params Params, keyLen uint32) (string, error) {
	if keyLen < MinOutputLength || keyLen > MaxOutputLength {
		return "", fmt.Errorf("%w: PHC hash must be %d..%d bytes", ErrInvalidKeyLength, MinOutputLength, MaxOutputLength)
	}

	raw, err := DecodeSalt(salt)
	if err != nil {
		return "", err
	}

	hash, err := Key(password, raw, params, int(keyLen))
	if err != nil {
		return "", err
	}

	return PHC{Params: params, Salt: salt, Hash: hash}.String(), nil
}

// Matches recomputes the hash of password with h's parameters and salt and
// compares it in constant time.
func (h *PHC) Matches(password []byte) (bool, error) {
	salt, err := DecodeSalt(h.Salt)
	if err != nil {
		return false, err
	}

	computed, err := Key(password, salt, h.Params, len(h.Hash))
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(computed, h.Hash) == 1, nil
}

func validateConfig(cfg Config) error {
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	if cfg.SaltLength < 3 || cfg.SaltLength > 48 {
		return fmt.Errorf("%w: salt length must be 3..48 bytes", ErrInvalidSalt)
	}
	if cfg.KeyLength < MinOutputLength || cfg.KeyLength > MaxOutputLength {
		return fmt.Errorf("%w: key length must be %d..%d", ErrInvalidKeyLength, MinOutputLength, MaxOutputLength)
	}

	return nil
}
