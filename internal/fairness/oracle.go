// Package fairness implements the provably-fair seed/crash-point protocol
// (spec §4.1), grounded on internal/game/provably_fair.go from the teacher
// repo but replaced with the integer-fair formulation spec.md pins down.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"crashcore/internal/apperr"
	"crashcore/internal/money"
)

// MaxMultiplier caps the crash point on the high side (carried over from
// the teacher's MAX_MULTIPLIER constant).
const MaxMultiplier money.Multiplier = 100000000 // 1,000,000.00x

// bits52 is the number of bits of the HMAC digest treated as the uniform
// draw X, per spec §4.1.
const bits52 = 52

var max52 = new(big.Int).Lsh(big.NewInt(1), bits52) // 2^52

// Seeds is the committed/derived material for one round.
type Seeds struct {
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          int
}

// Oracle produces per-round seed material and crash points.
type Oracle struct {
	houseEdge float64
}

// New builds an Oracle with the given house edge h ∈ [0,1).
func New(houseEdge float64) *Oracle {
	return &Oracle{houseEdge: houseEdge}
}

// NewRound generates a fresh (serverSeed, hash, clientSeed) triple for the
// next round. Returns a FailedPrecondition apperr if randomness acquisition
// fails (spec §4.1 "Failure modes").
func (o *Oracle) NewRound(nonce int) (Seeds, error) {
	serverSeed, err := generateSeed()
	if err != nil {
		return Seeds{}, apperr.Wrap(apperr.FailedPrecondition, "failed to acquire random seed", err)
	}
	clientSeed, err := generateSeed()
	if err != nil {
		return Seeds{}, apperr.Wrap(apperr.FailedPrecondition, "failed to acquire client seed", err)
	}
	return Seeds{
		ServerSeed:     serverSeed,
		ServerSeedHash: HashCommitment(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          nonce,
	}, nil
}

// CrashPoint computes the deterministic crash multiplier for the given
// seeds using the integer-fair formulation from spec §4.1:
//
//	X := first 52 bits of HMAC-SHA256(serverSeed, clientSeed||nonce)
//	crash := floor(((1-h) * 2^52 * 100) / (2^52 - X)), clamped to [100, MaxMultiplier]
//
// The result is expressed directly in centi-multiplier units (100 = 1.00x).
func (o *Oracle) CrashPoint(seeds Seeds) money.Multiplier {
	x := drawX(seeds.ServerSeed, seeds.ClientSeed, seeds.Nonce)

	// numerator = (1-h) * 2^52 * 100, computed in integer space by scaling
	// (1-h) to a fixed-point integer first to avoid floats entirely.
	const scale = 1_000_000
	oneMinusH := int64((1 - o.houseEdge) * scale)

	numerator := new(big.Int).Mul(max52, big.NewInt(oneMinusH))
	numerator.Mul(numerator, big.NewInt(100))

	denominator := new(big.Int).Sub(max52, x)
	if denominator.Sign() <= 0 {
		return money.OneX
	}
	denominator.Mul(denominator, big.NewInt(scale))

	result := new(big.Int).Quo(numerator, denominator)
	crash := money.Multiplier(result.Int64())

	if crash < money.OneX {
		return money.OneX
	}
	if crash > MaxMultiplier {
		return MaxMultiplier
	}
	return crash
}

// Verify reproduces CrashPoint from a revealed serverSeed/hash pair and
// checks both the hash commitment and the crash-point derivation (spec
// §8 I2, §6 fairness audit surface).
func (o *Oracle) Verify(seeds Seeds, claimedCrash money.Multiplier) bool {
	if HashCommitment(seeds.ServerSeed) != seeds.ServerSeedHash {
		return false
	}
	return o.CrashPoint(seeds) == claimedCrash
}

func drawX(serverSeed, clientSeed string, nonce int) *big.Int {
	data := fmt.Sprintf("%s:%d", clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(data))
	digest := h.Sum(nil)

	// first 52 bits = first 6.5 bytes; mask the low 4 bits of the 7th byte.
	x := new(big.Int).SetBytes(digest[:7])
	x.Rsh(x, 4)
	return x
}

func generateSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashCommitment returns SHA-256(seed) hex-encoded (spec §3 "hash of server
// seed").
func HashCommitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}
