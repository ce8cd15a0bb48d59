package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/society-voting/internal/biometric"
	"github.com/iliyamo/society-voting/internal/metrics"
	"github.com/iliyamo/society-voting/internal/model"
	"github.com/iliyamo/society-voting/internal/repository"
)

// Strategy identifies a household from an address filter and a proof.  A
// strategy only answers "who is this"; eligibility is decided by the Gate.
type Strategy interface {
	// Method names the strategy in logs and metrics.
	Method() string
	// Identify returns the household matching the filter and proof, or an
	// *Error explaining the rejection.
	Identify(ctx context.Context, society string, f model.AddressFilter, proof string) (*model.Household, error)
}

// VerifyRequest is a verification attempt.
type VerifyRequest struct {
	Society string
	Address AddressQuery
	Proof   string // secret code or captured image
	Mode    Mode
}

// Verification is the outcome of a successful attempt.
type Verification struct {
	Household *model.Household
	// VotedAt is the proof of a previous vote, set only when the household
	// has already voted in this cycle.
	VotedAt *time.Time
}

// Verifier runs a Strategy through the eligibility checks.  It never
// mutates state.
type Verifier struct {
	Communities *repository.CommunityRepo
	Gate        Gate
	Log         logrus.FieldLogger
}

// NewVerifier constructs a Verifier.
func NewVerifier(communities *repository.CommunityRepo, gate Gate, log logrus.FieldLogger) *Verifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Verifier{Communities: communities, Gate: gate, Log: log}
}

// Verify identifies the household of req using s and applies the gate.
// Checks run in this order for every strategy: request shape, schedule
// configured, identity, blocked, allowed, then window and voted flag when
// req.Mode is ModeVote.
func (v *Verifier) Verify(ctx context.Context, s Strategy, req VerifyRequest) (res *Verification, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = AsError(err).Code
		}
		metrics.ObserveVerification(s.Method(), outcome)
		v.Log.WithFields(logrus.Fields{
			"method":  s.Method(),
			"society": req.Society,
			"mode":    req.Mode,
			"outcome": outcome,
		}).Debug("verification attempt")
	}()

	req.Society = strings.TrimSpace(req.Society)
	if req.Society == "" || strings.TrimSpace(req.Proof) == "" {
		return nil, ErrMissingFields
	}
	filter, err := ResolveFilter(req.Address)
	if err != nil {
		return nil, err
	}

	sched, err := v.Communities.GetSchedule(ctx, req.Society)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrScheduleNotSet
		}
		return nil, Internal(err)
	}
	if err := v.Gate.RequireSchedule(sched); err != nil {
		return nil, err
	}

	h, err := s.Identify(ctx, req.Society, filter, req.Proof)
	if err != nil {
		return nil, err
	}
	if err := v.Gate.Admit(h, sched, req.Mode); err != nil {
		return nil, err
	}
	return &Verification{Household: h, VotedAt: h.ProofOfVote()}, nil
}

// SecretCode identifies a household by its address and secret code.
type SecretCode struct {
	Households *repository.HouseholdRepo
}

// Method implements Strategy.
func (SecretCode) Method() string { return "code" }

// Identify implements Strategy.  Address and code are matched in a single
// lookup, so a miss does not tell which of the two was wrong.
func (s SecretCode) Identify(ctx context.Context, society string, f model.AddressFilter, code string) (*model.Household, error) {
	h, err := s.Households.FindByCode(ctx, society, f, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, Internal(err)
	}
	return h, nil
}

// Biometric identifies a household by comparing a captured image against
// the face template enrolled for its address.
type Biometric struct {
	Households *repository.HouseholdRepo
	Oracle     biometric.Oracle
}

// Method implements Strategy.
func (Biometric) Method() string { return "face" }

// Identify implements Strategy.  Only households with an enrolled template
// are considered.  A capture without a detectable face is reported as
// ErrNoFaceDetected; a face that does not match as ErrInvalidCredentials.
func (b Biometric) Identify(ctx context.Context, society string, f model.AddressFilter, image string) (*model.Household, error) {
	img, err := biometric.DecodeImage(image)
	if err != nil {
		return nil, ErrInvalidImage.Wrap(err)
	}
	h, err := b.Households.FindEnrolled(ctx, society, f)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoFaceRecord
		}
		return nil, Internal(err)
	}
	stored, err := biometric.ParseTemplate(*h.FaceTemplate)
	if err != nil {
		return nil, Internal(err)
	}

	start := time.Now()
	live, err := b.Oracle.Embed(ctx, img)
	metrics.ObserveOracle(start)
	if err != nil {
		if errors.Is(err, biometric.ErrNoSubject) {
			return nil, ErrNoFaceDetected
		}
		return nil, Internal(err)
	}
	ok, err := b.Oracle.Match(live, stored)
	if err != nil {
		return nil, Internal(err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return h, nil
}
