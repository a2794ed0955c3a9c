package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskhub/internal/model"
)

func TestGetUser_ProfileSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	bob := f.login(walletB)

	g, _ := f.groups.CreateGroup(ctx, alice, CreateGroupInput{Name: "Team"})
	f.groups.AddMember(ctx, alice, AddMemberInput{GroupID: g.GroupID, WalletAddress: walletB})

	withFile, _ := f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "file", Tags: []string{"a"}, GroupID: g.GroupID})
	f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "wip", Tags: []string{"a"}, GroupID: g.GroupID, Status: model.TaskStatusInProgress})
	f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "todo", Tags: []string{"a"}, GroupID: g.GroupID})
	f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "personal", Tags: []string{"a"}})
	f.evidence.AddAttachment(ctx, alice, withFile.TaskID, AttachmentInput{FileName: "a", FileURL: "https://x/a"})

	profile, err := f.users.GetUser(ctx, strings.ToUpper(walletB[:2])+walletB[2:])
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if profile.User.ID != bob.UserID {
		t.Fatalf("unexpected user %+v", profile.User)
	}
	s := profile.ProfileSummary
	if s.TotalTasks != 3 || s.CompletedTasks != 1 || s.InProgressTasks != 1 || s.PendingTasks != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.ProductivityScore < 33.3 || s.ProductivityScore > 33.4 {
		t.Fatalf("unexpected score %v", s.ProductivityScore)
	}
	if s.LastUpdatedSummary != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", s.LastUpdatedSummary)
	}
	if len(profile.GroupsOverview) != 1 || profile.GroupsOverview[0].Role != model.RoleMember || profile.GroupsOverview[0].TaskCount != 3 {
		t.Fatalf("unexpected overview %+v", profile.GroupsOverview)
	}
	if profile.TotalGroupTasks != 3 || len(profile.UserTasks) != 3 {
		t.Fatalf("unexpected task list")
	}

	// 统计口径只影响返回值
	stored, _ := f.tasks.GetTask(ctx, alice, withFile.TaskID)
	if stored.IsCompleted || stored.Status != model.TaskStatusPending {
		t.Fatalf("stored task must not be mutated, got %+v", stored)
	}
}

func TestGetUser_NoGroups(t *testing.T) {
	f := newFixture()
	f.login(walletA)
	profile, err := f.users.GetUser(context.Background(), walletA)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if profile.ProfileSummary.TotalTasks != 0 || profile.ProfileSummary.ProductivityScore != 0 {
		t.Fatalf("expected empty summary, got %+v", profile.ProfileSummary)
	}
	if _, err := f.users.GetUser(context.Background(), walletB); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUser_SelfOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	bob := f.login(walletB)

	name := "Alice"
	if _, err := f.users.UpdateUser(ctx, bob, walletA, UserPatch{DisplayName: &name}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	long := strings.Repeat("x", 51)
	if _, err := f.users.UpdateUser(ctx, alice, walletA, UserPatch{DisplayName: &long}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	dark := "dark"
	updated, err := f.users.UpdateUser(ctx, alice, walletA, UserPatch{DisplayName: &name, Preferences: &PreferencesPatch{Theme: &dark}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DisplayName != name || updated.WalletAddress != walletA {
		t.Fatalf("unexpected user %+v", updated)
	}
	if updated.Preferences.Theme != "dark" || updated.Preferences.Language != "vi" || !updated.Preferences.Notifications {
		t.Fatalf("expected merged preferences, got %+v", updated.Preferences)
	}

	off := false
	updated, err = f.users.UpdatePreferences(ctx, alice, walletA, PreferencesPatch{WebPushEnabled: &off})
	if err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	if updated.Preferences.WebPushEnabled || updated.Preferences.Theme != "dark" {
		t.Fatalf("unexpected preferences %+v", updated.Preferences)
	}
}

func TestListUsers(t *testing.T) {
	f := newFixture()
	f.login(walletA)
	f.login(walletB)
	users, err := f.users.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}
