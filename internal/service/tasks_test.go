package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskhub/internal/model"
)

func strPtr(s string) *string { return &s }

func TestColorForPriority(t *testing.T) {
	cases := map[string]string{
		model.PriorityHigh:   "#ef4444",
		model.PriorityMedium: "#f59e0b",
		model.PriorityLow:    "#10b981",
		"urgent":             "#6b7280",
		"":                   "#6b7280",
	}
	for priority, want := range cases {
		if got := ColorForPriority(priority); got != want {
			t.Fatalf("priority %q: expected %s, got %s", priority, want, got)
		}
		if ColorForPriority(priority) != ColorForPriority(priority) {
			t.Fatalf("color must be stable for %q", priority)
		}
	}
}

func TestCreateTask_PersonalDefaults(t *testing.T) {
	f := newFixture()
	alice := f.login(walletA)

	task, err := f.tasks.CreateTask(context.Background(), alice, CreateTaskInput{Title: "Write docs", Tags: []string{"docs"}})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != model.TaskStatusPending || task.Priority != model.PriorityMedium {
		t.Fatalf("unexpected defaults %+v", task)
	}
	if task.ColorCode != "#f59e0b" || task.IsCompleted {
		t.Fatalf("unexpected derived fields %+v", task)
	}
	if task.UserID != alice.UserID || task.WalletAddress != walletA || task.GroupID != "" {
		t.Fatalf("unexpected ownership %+v", task)
	}
	if got := f.audit.actions(); len(got) != 1 || got[0] != "create_task" {
		t.Fatalf("expected create_task audit, got %v", got)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	f := newFixture()
	alice := f.login(walletA)
	cases := []CreateTaskInput{
		{Title: "", Tags: []string{"a"}},
		{Title: "no tags"},
		{Title: "too many", Tags: []string{"1", "2", "3", "4", "5", "6"}},
		{Title: "bad status", Tags: []string{"a"}, Status: "done"},
		{Title: "bad priority", Tags: []string{"a"}, Priority: "urgent"},
	}
	for _, in := range cases {
		if _, err := f.tasks.CreateTask(context.Background(), alice, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", in, err)
		}
	}
}

func TestCreateTask_CompletedRejected(t *testing.T) {
	f := newFixture()
	alice := f.login(walletA)
	_, err := f.tasks.CreateTask(context.Background(), alice, CreateTaskInput{Title: "x", Tags: []string{"a"}, Status: model.TaskStatusCompleted})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestGroupTask_RoleChecks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	bob := f.login(walletB)
	carol := f.login(walletC)
	dave := f.login(walletD)

	g, _ := f.groups.CreateGroup(ctx, alice, CreateGroupInput{Name: "Team"})
	f.groups.AddMember(ctx, alice, AddMemberInput{GroupID: g.GroupID, WalletAddress: walletB, Role: model.RoleAdmin})
	f.groups.AddMember(ctx, alice, AddMemberInput{GroupID: g.GroupID, WalletAddress: walletC})

	if _, err := f.tasks.CreateTask(ctx, carol, CreateTaskInput{Title: "t", Tags: []string{"a"}, GroupID: g.GroupID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected member create to be forbidden, got %v", err)
	}
	task, err := f.tasks.CreateTask(ctx, bob, CreateTaskInput{Title: "t", Tags: []string{"a"}, GroupID: g.GroupID})
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if task.UserID != "" || task.GroupID != g.GroupID {
		t.Fatalf("group task must not carry personal owner: %+v", task)
	}

	if _, err := f.tasks.GetTask(ctx, carol, task.TaskID); err != nil {
		t.Fatalf("member read: %v", err)
	}
	if _, err := f.tasks.GetTask(ctx, dave, task.TaskID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected outsider read to be forbidden, got %v", err)
	}
	if _, err := f.tasks.UpdateTask(ctx, carol, task.TaskID, TaskPatch{Title: strPtr("x")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected member update to be forbidden, got %v", err)
	}
	if _, err := f.tasks.UpdateTask(ctx, bob, task.TaskID, TaskPatch{Priority: strPtr(model.PriorityHigh)}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if err := f.tasks.DeleteTask(ctx, bob, task.TaskID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected admin delete to be forbidden, got %v", err)
	}
	if err := f.tasks.DeleteTask(ctx, alice, task.TaskID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestPersonalTask_OnlyOwner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	bob := f.login(walletB)

	task, _ := f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "mine", Tags: []string{"a"}})
	if _, err := f.tasks.GetTask(ctx, bob, task.TaskID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.tasks.DeleteTask(ctx, bob, task.TaskID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.tasks.GetTask(ctx, alice, "task_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompletionGate_ScopedToActor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	bob := f.login(walletB)

	g, _ := f.groups.CreateGroup(ctx, alice, CreateGroupInput{Name: "Team"})
	f.groups.AddMember(ctx, alice, AddMemberInput{GroupID: g.GroupID, WalletAddress: walletB, Role: model.RoleAdmin})
	task, _ := f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "ship", Tags: []string{"a"}, GroupID: g.GroupID})

	// bob 提交了全部凭证
	if _, err := f.evidence.AddAttachment(ctx, bob, task.TaskID, AttachmentInput{FileName: "proof.png", FileURL: "https://x/proof.png"}); err != nil {
		t.Fatalf("add attachment: %v", err)
	}
	if _, err := f.evidence.AddVerification(ctx, bob, task.TaskID, VerificationInput{Message: "done", Signature: "sig:" + walletB}); err != nil {
		t.Fatalf("add verification: %v", err)
	}

	completed := model.TaskStatusCompleted
	if _, err := f.tasks.UpdateTask(ctx, alice, task.TaskID, TaskPatch{Status: &completed}); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected alice to be gated, got %v", err)
	}
	if _, err := f.tasks.UpdateTask(ctx, bob, task.TaskID, TaskPatch{Status: &completed}); err != nil {
		t.Fatalf("expected bob to complete, got %v", err)
	}
}

func TestCompletion_AttachmentOnlyRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	task, _ := f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "x", Tags: []string{"a"}})
	f.evidence.AddAttachment(ctx, alice, task.TaskID, AttachmentInput{FileName: "a.txt", FileURL: "https://x/a.txt"})

	completed := model.TaskStatusCompleted
	if _, err := f.tasks.UpdateTask(ctx, alice, task.TaskID, TaskPatch{Status: &completed}); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got %v", err)
	}
	stored, _ := f.tasks.GetTask(ctx, alice, task.TaskID)
	if stored.Status != model.TaskStatusPending {
		t.Fatalf("rejected update must not persist, got %s", stored.Status)
	}
}

func TestCompletedAt_Stable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	task, _ := f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "x", Tags: []string{"a"}})
	f.evidence.AddAttachment(ctx, alice, task.TaskID, AttachmentInput{FileName: "a.txt", FileURL: "https://x/a.txt"})
	f.evidence.AddVerification(ctx, alice, task.TaskID, VerificationInput{Message: "m", Signature: "sig:" + walletA})

	completed := model.TaskStatusCompleted
	done, err := f.tasks.UpdateTask(ctx, alice, task.TaskID, TaskPatch{Status: &completed})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.IsCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completion fields, got %+v", done)
	}
	first := *done.CompletedAt

	f.advance(time.Hour)
	inProgress := model.TaskStatusInProgress
	reopened, err := f.tasks.UpdateTask(ctx, alice, task.TaskID, TaskPatch{Status: &inProgress})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.IsCompleted {
		t.Fatalf("expected is_completed false after reopen")
	}

	f.advance(time.Hour)
	again, err := f.tasks.UpdateTask(ctx, alice, task.TaskID, TaskPatch{Status: &completed})
	if err != nil {
		t.Fatalf("complete again: %v", err)
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(first) {
		t.Fatalf("expected completed_at to stay %v, got %v", first, again.CompletedAt)
	}
}

func TestListTasks_DefaultAndVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	bob := f.login(walletB)

	f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "a1", Tags: []string{"a"}})
	f.tasks.CreateTask(ctx, bob, CreateTaskInput{Title: "b1", Tags: []string{"a"}})
	g, _ := f.groups.CreateGroup(ctx, alice, CreateGroupInput{Name: "Team"})
	f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "g1", Tags: []string{"a"}, GroupID: g.GroupID})

	mine, err := f.tasks.ListTasks(ctx, alice, ListTasksQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].Title != "a1" {
		t.Fatalf("expected caller's personal task, got %+v", mine)
	}

	groupTasks, _ := f.tasks.ListTasks(ctx, bob, ListTasksQuery{GroupID: g.GroupID})
	if len(groupTasks) != 0 {
		t.Fatalf("non-member must not see group tasks, got %d", len(groupTasks))
	}
	groupTasks, _ = f.tasks.ListTasks(ctx, alice, ListTasksQuery{GroupID: g.GroupID})
	if len(groupTasks) != 1 {
		t.Fatalf("expected 1 group task, got %d", len(groupTasks))
	}

	others, _ := f.tasks.ListTasks(ctx, alice, ListTasksQuery{WalletAddress: walletB})
	if len(others) != 0 {
		t.Fatalf("must not see other users' personal tasks, got %d", len(others))
	}
}

func TestDeleteTask_Cascades(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := f.login(walletA)
	task, _ := f.tasks.CreateTask(ctx, alice, CreateTaskInput{Title: "x", Tags: []string{"a"}})
	f.evidence.AddAttachment(ctx, alice, task.TaskID, AttachmentInput{FileName: "a.txt", FileURL: "https://x/a.txt"})
	f.comments.CreateComment(ctx, alice, CreateCommentInput{TaskID: task.TaskID, Content: "hi"})

	if err := f.tasks.DeleteTask(ctx, alice, task.TaskID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.db.Attachments) != 0 || len(f.db.Comments) != 0 {
		t.Fatalf("expected children to be removed")
	}
	if _, err := f.tasks.GetTask(ctx, alice, task.TaskID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
