package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
)

const (
	HOUSE_EDGE = 0.01 // 1%
)

// Draw is the outcome of one crash point derivation plus what is needed to
// re-derive it once the seeds are revealed.
type Draw struct {
	CrashPoint float64 `json:"crash_point"`
	ServerSeed string  `json:"server_seed,omitempty"`
	ClientSeed string  `json:"client_seed,omitempty"`
	Nonce      int64   `json:"nonce"`
	Commitment string  `json:"commitment,omitempty"`
}

// CrashPointSource produces the crash point of a round. Implementations must
// return values in [MIN_CRASH_POINT, MAX_CRASH_POINT]; the engine panics
// otherwise.
type CrashPointSource interface {
	Draw(roundID int64) Draw
}

// SeededSource derives crash points from fresh random seeds with HMAC-SHA256.
// The hash scheme is illustrative: it is not a fairness guarantee a third
// party could audit.
type SeededSource struct {
	HouseEdge  float64
	ClientSeed string // fresh per round when empty
}

func NewSeededSource(houseEdge float64) *SeededSource {
	return &SeededSource{HouseEdge: houseEdge}
}

func (s *SeededSource) Draw(roundID int64) Draw {
	serverSeed := GenerateSeed()
	clientSeed := s.ClientSeed
	if clientSeed == "" {
		clientSeed = GenerateSeed()
	}
	return Draw{
		CrashPoint: CrashPointFromSeeds(serverSeed, clientSeed, roundID, s.HouseEdge),
		ServerSeed: serverSeed,
		ClientSeed: clientSeed,
		Nonce:      roundID,
		Commitment: HashCommitment(serverSeed),
	}
}

// SequenceSource replays fixed crash points in order, wrapping around. It
// needs at least one point.
type SequenceSource struct {
	mu     sync.Mutex
	points []float64
	next   int
}

func NewSequenceSource(points ...float64) *SequenceSource {
	if len(points) == 0 {
		panic("game: NewSequenceSource needs at least one crash point")
	}
	return &SequenceSource{points: append([]float64(nil), points...)}
}

func (s *SequenceSource) Draw(roundID int64) Draw {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.points) == 0 {
		panic("game: SequenceSource has no crash points")
	}
	c := s.points[s.next%len(s.points)]
	s.next++
	return Draw{CrashPoint: c, Nonce: roundID}
}

// HashAndMapToMultiplier derives a crash point with the default house edge.
func HashAndMapToMultiplier(serverSeed, clientSeed string, nonce int64) float64 {
	return CrashPointFromSeeds(serverSeed, clientSeed, nonce, HOUSE_EDGE)
}

// CrashPointFromSeeds hashes the seeds into a uniform float and maps it
// through CrashPointFromUniform.
func CrashPointFromSeeds(serverSeed, clientSeed string, nonce int64, houseEdge float64) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(fmt.Sprintf("%s:%d", clientSeed, nonce)))
	sum := h.Sum(nil)

	// 53 bits so the float is exactly representable and strictly below 1.
	r := float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)
	return CrashPointFromUniform(r, houseEdge)
}

// CrashPointFromUniform maps r in [0,1) to a crash point with
// P(crash >= m) = (1-houseEdge)/m, floored to two decimals and clamped to
// [MIN_CRASH_POINT, MAX_CRASH_POINT].
func CrashPointFromUniform(r, houseEdge float64) float64 {
	if math.IsNaN(r) || r < 0 {
		r = 0
	}
	if r >= 1 {
		return MAX_CRASH_POINT
	}
	crash := floor2((1 - houseEdge) / (1 - r))
	if crash < MIN_CRASH_POINT {
		return MIN_CRASH_POINT
	}
	if crash > MAX_CRASH_POINT {
		return MAX_CRASH_POINT
	}
	return crash
}

// GenerateSeed creates a random 32 byte seed, hex encoded.
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// VerifyRound recomputes the crash point from revealed seeds.
func VerifyRound(serverSeed, clientSeed string, nonce int64, claimedMultiplier float64) bool {
	calculated := HashAndMapToMultiplier(serverSeed, clientSeed, nonce)
	return math.Abs(calculated-claimedMultiplier) < 0.01
}

// VerifyCommitment checks a revealed server seed against its commitment.
func VerifyCommitment(serverSeed, commitment string) bool {
	return hmac.Equal([]byte(HashCommitment(serverSeed)), []byte(commitment))
}
