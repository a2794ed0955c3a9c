package service

import (
	"context"
	"testing"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/store/storetest"
)

func TestOwnerSync(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)

	created := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	f.db.Groups["grp_legacy"] = &model.Group{GroupID: "grp_legacy", WalletAddress: walletA, Name: "Legacy", JoinPolicy: model.JoinPolicyOpen, CreatedAt: created}
	f.db.Groups["grp_orphan"] = &model.Group{GroupID: "grp_orphan", WalletAddress: "", Name: "Orphan", CreatedAt: created}
	if _, err := f.groups.CreateGroup(ctx, alice, CreateGroupInput{Name: "Healthy"}); err != nil {
		t.Fatalf("create group: %v", err)
	}

	syncer := NewOwnerSync(storetest.GroupStore{DB: f.db}, storetest.MemberStore{DB: f.db}, storetest.UserStore{DB: f.db}, discardLogger())

	report, err := syncer.Run(ctx, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if report.Scanned != 2 || report.Inserted != 0 || len(report.GroupIDs) != 1 {
		t.Fatalf("unexpected dry run report %+v", report)
	}

	report, err = syncer.Run(ctx, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Inserted != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	m, _ := storetest.MemberStore{DB: f.db}.Find(ctx, "grp_legacy", walletA)
	if m == nil || m.Role != model.RoleOwner || m.UserID != alice.UserID || !m.JoinedAt.Equal(created) {
		t.Fatalf("unexpected owner membership %+v", m)
	}

	report, _ = syncer.Run(ctx, false)
	if report.Inserted != 0 {
		t.Fatalf("second run must be a no-op, got %+v", report)
	}
}
