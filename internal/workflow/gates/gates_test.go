package gates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"procureflow/internal/workflow/models"
	id "procureflow/pkg/domain"
)

type GatesSuite struct {
	suite.Suite
}

func TestGatesSuite(t *testing.T) {
	suite.Run(t, new(GatesSuite))
}

func highRiskRecord(recordType models.RecordType, status models.State) *models.Record {
	return &models.Record{
		ID:        id.NewRecordID(),
		Type:      recordType,
		Status:    status,
		Version:   1,
		RiskLevel: models.RiskLevelHigh,
		RiskScore: 87.5,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *GatesSuite) TestUnregisteredCombinationIsClear() {
	e := NewEvaluator()
	record := highRiskRecord(models.RecordTypeVendorDD, models.StatePendingHopApproval)

	decision, err := e.Evaluate(models.RecordTypeVendorDD, models.ActionHopApproval, record)

	s.Require().NoError(err)
	s.False(decision.Blocked)
}

func (s *GatesSuite) TestDuplicateRegistrationFails() {
	e := NewEvaluator()
	s.Require().NoError(e.Register(models.RecordTypeVendorDD, models.ActionHopApproval, RiskAcceptanceRequired()))

	err := e.Register(models.RecordTypeVendorDD, models.ActionHopApproval, RiskAcceptanceRequired())

	s.Error(err)
}

func (s *GatesSuite) TestRiskAcceptanceGate() {
	gate := RiskAcceptanceRequired()

	s.Run("blocks high risk without acceptance", func() {
		record := highRiskRecord(models.RecordTypeVendorDD, models.StatePendingHopApproval)

		decision, err := gate.Evaluate(record)

		s.Require().NoError(err)
		s.True(decision.Blocked)
		s.Equal("risk acceptance required", decision.Reason)
	})

	s.Run("clear once acceptance is attached", func() {
		record := highRiskRecord(models.RecordTypeVendorDD, models.StatePendingHopApproval)
		record.RiskAcceptance = &models.RiskAcceptance{
			Reason:     "residual risk within appetite",
			AcceptedBy: "officer-1",
			AcceptedAt: time.Now().UTC(),
		}

		decision, err := gate.Evaluate(record)

		s.Require().NoError(err)
		s.False(decision.Blocked)
	})

	s.Run("clear for non-high risk", func() {
		record := highRiskRecord(models.RecordTypeVendorDD, models.StatePendingHopApproval)
		record.RiskLevel = models.RiskLevelMedium

		decision, err := gate.Evaluate(record)

		s.Require().NoError(err)
		s.False(decision.Blocked)
	})
}

func (s *GatesSuite) TestGateIsPure() {
	gate := RiskAcceptanceRequired()
	record := highRiskRecord(models.RecordTypeContract, models.StatePendingGovernanceApproval)
	before := record.Clone()

	_, err := gate.Evaluate(record)

	s.Require().NoError(err)
	s.Equal(before, record.Clone())
}

func (s *GatesSuite) TestSameSnapshotSameDecision() {
	gate := RiskAcceptanceRequired()
	record := highRiskRecord(models.RecordTypePaymentAuth, models.StatePendingAuthorization)

	first, err := gate.Evaluate(record)
	s.Require().NoError(err)
	second, err := gate.Evaluate(record)
	s.Require().NoError(err)

	s.Equal(first, second)
}

func (s *GatesSuite) TestCELGate() {
	gate, err := NewCELGate(
		"payment-risk-acceptance",
		`risk_level == "high" && !has_risk_acceptance`,
		"risk acceptance required",
	)
	s.Require().NoError(err)

	s.Run("blocks high risk payment", func() {
		record := highRiskRecord(models.RecordTypePaymentAuth, models.StatePendingAuthorization)

		decision, evalErr := gate.Evaluate(record)

		s.Require().NoError(evalErr)
		s.True(decision.Blocked)
		s.Equal("risk acceptance required", decision.Reason)
	})

	s.Run("clear with acceptance", func() {
		record := highRiskRecord(models.RecordTypePaymentAuth, models.StatePendingAuthorization)
		record.RiskAcceptance = &models.RiskAcceptance{AcceptedBy: "treasurer-1", AcceptedAt: time.Now().UTC()}

		decision, evalErr := gate.Evaluate(record)

		s.Require().NoError(evalErr)
		s.False(decision.Blocked)
	})

	s.Run("score threshold expression", func() {
		scoreGate, gateErr := NewCELGate("score-cap", `risk_score >= 90.0`, "risk score over authorization cap")
		s.Require().NoError(gateErr)

		record := highRiskRecord(models.RecordTypePaymentAuth, models.StatePendingAuthorization)
		record.RiskScore = 93.2

		decision, evalErr := scoreGate.Evaluate(record)

		s.Require().NoError(evalErr)
		s.True(decision.Blocked)
	})
}

func (s *GatesSuite) TestCELGateRejectsMalformedExpression() {
	_, err := NewCELGate("broken", `risk_level ==`, "n/a")
	s.Error(err)

	_, err = NewCELGate("not-bool", `risk_score + 1.0`, "n/a")
	s.Error(err)
}

func (s *GatesSuite) TestDefaultEvaluatorWiring() {
	e, err := DefaultEvaluator()
	s.Require().NoError(err)

	cases := []struct {
		name       string
		recordType models.RecordType
		action     models.Action
		status     models.State
	}{
		{"vendor dd hop approval", models.RecordTypeVendorDD, models.ActionHopApproval, models.StatePendingHopApproval},
		{"vendor dd conditional approval", models.RecordTypeVendorDD, models.ActionApproveWithConditions, models.StatePendingHopApproval},
		{"contract governance approval", models.RecordTypeContract, models.ActionGovernanceApprove, models.StatePendingGovernanceApproval},
		{"payment authorization", models.RecordTypePaymentAuth, models.ActionAuthorize, models.StatePendingAuthorization},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			record := highRiskRecord(tc.recordType, tc.status)

			decision, evalErr := e.Evaluate(tc.recordType, tc.action, record)
			s.Require().NoError(evalErr)
			s.True(decision.Blocked)

			record.RiskAcceptance = &models.RiskAcceptance{AcceptedBy: "officer-1", AcceptedAt: time.Now().UTC()}
			decision, evalErr = e.Evaluate(tc.recordType, tc.action, record)
			s.Require().NoError(evalErr)
			s.False(decision.Blocked)
		})
	}
}
