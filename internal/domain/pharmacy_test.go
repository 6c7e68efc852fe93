package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestPharmacy_ApplyReview(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		p := &Pharmacy{ApplicationStatus: ApplicationPending, RejectionReason: "old"}
		if err := p.ApplyReview(DecisionApprove, "", testNow); err != nil {
			t.Fatalf("ApplyReview() error = %v", err)
		}
		if !p.Verified || p.ApplicationStatus != ApplicationApproved || p.RejectionReason != "" {
			t.Errorf("unexpected state after approval: %+v", p)
		}
		if !p.UpdatedAt.Equal(testNow) {
			t.Errorf("UpdatedAt = %v", p.UpdatedAt)
		}
	})

	t.Run("reject requires reason", func(t *testing.T) {
		p := &Pharmacy{ApplicationStatus: ApplicationPending}
		err := p.ApplyReview(DecisionReject, "  ", testNow)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if p.ApplicationStatus != ApplicationPending {
			t.Errorf("status changed on failed review: %s", p.ApplicationStatus)
		}
	})

	t.Run("reject", func(t *testing.T) {
		p := &Pharmacy{ApplicationStatus: ApplicationApproved, Verified: true}
		if err := p.ApplyReview(DecisionReject, "license expired", testNow); err != nil {
			t.Fatalf("ApplyReview() error = %v", err)
		}
		if p.Verified || p.ApplicationStatus != ApplicationRejected || p.RejectionReason != "license expired" {
			t.Errorf("unexpected state after rejection: %+v", p)
		}
	})

	t.Run("unknown decision", func(t *testing.T) {
		p := &Pharmacy{}
		if err := p.ApplyReview("defer", "", testNow); !errors.Is(err, ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestActor_CanManage(t *testing.T) {
	pharmacyID := uuid.New()

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"owner of pharmacy", Actor{UserID: uuid.New(), Role: RolePharmacyOwner, PharmacyID: pharmacyID}, true},
		{"owner of another pharmacy", Actor{UserID: uuid.New(), Role: RolePharmacyOwner, PharmacyID: uuid.New()}, false},
		{"owner without pharmacy", Actor{UserID: uuid.New(), Role: RolePharmacyOwner}, false},
		{"patient", Actor{UserID: uuid.New(), Role: RolePatient, PharmacyID: pharmacyID}, false},
		{"system", SystemActor(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.actor.CanManage(pharmacyID); got != tt.want {
				t.Errorf("CanManage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActor_ChangedBy(t *testing.T) {
	if SystemActor().ChangedBy() != nil {
		t.Error("system actions must record a nil actor")
	}

	userID := uuid.New()
	got := Actor{UserID: userID, Role: RolePharmacyOwner}.ChangedBy()
	if got == nil || *got != userID {
		t.Errorf("ChangedBy() = %v, want %s", got, userID)
	}
}
