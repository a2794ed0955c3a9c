package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"taskhub/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// newTestDB 打开进程内 SQLite 并执行与生产相同的迁移与 gorm 配置。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := open(sqlite.Open("file:" + name + "?mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func countRows(t *testing.T, db *gorm.DB, m any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func ownerOf(group *model.Group, id string) *model.Membership {
	return &model.Membership{
		ID:            id,
		GroupID:       group.GroupID,
		UserID:        "user_" + id,
		WalletAddress: group.WalletAddress,
		Role:          model.RoleOwner,
		Permissions:   []string{"*"},
		JoinedAt:      time.Now().UTC(),
		LastActiveAt:  time.Now().UTC(),
	}
}

func TestGroupStore_CreateWithOwner(t *testing.T) {
	db := newTestDB(t)
	groups := NewGroupStore(db)
	members := NewMemberStore(db)
	ctx := context.Background()

	g := &model.Group{GroupID: "grp_1", WalletAddress: "0xaaa", Name: "Launch"}
	if err := groups.CreateWithOwner(ctx, g, ownerOf(g, "mem_1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := members.ListByGroup(ctx, "grp_1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(list) != 1 || list[0].Role != model.RoleOwner || list[0].WalletAddress != "0xaaa" {
		t.Fatalf("expected exactly one owner row, got %+v", list)
	}
	if len(list[0].Permissions) != 1 || list[0].Permissions[0] != "*" {
		t.Fatalf("permissions not persisted: %v", list[0].Permissions)
	}
}

func TestGroupStore_CreateWithOwnerRollsBack(t *testing.T) {
	db := newTestDB(t)
	groups := NewGroupStore(db)
	ctx := context.Background()

	first := &model.Group{GroupID: "grp_1", WalletAddress: "0xaaa", Name: "one"}
	if err := groups.CreateWithOwner(ctx, first, ownerOf(first, "mem_1")); err != nil {
		t.Fatalf("create first: %v", err)
	}

	// 成员 ID 冲突使第二步失败，群组写入必须一并回滚
	second := &model.Group{GroupID: "grp_2", WalletAddress: "0xbbb", Name: "two"}
	if err := groups.CreateWithOwner(ctx, second, ownerOf(second, "mem_1")); err == nil {
		t.Fatalf("expected owner insert to fail")
	}
	got, err := groups.FindByID(ctx, "grp_2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != nil {
		t.Fatalf("group without owner membership was committed: %+v", got)
	}
}

func TestGroupStore_DeleteCascade(t *testing.T) {
	db := newTestDB(t)
	groups := NewGroupStore(db)
	members := NewMemberStore(db)
	ctx := context.Background()

	keep := &model.Group{GroupID: "grp_keep", WalletAddress: "0xaaa", Name: "keep"}
	drop := &model.Group{GroupID: "grp_drop", WalletAddress: "0xaaa", Name: "drop"}
	if err := groups.CreateWithOwner(ctx, keep, ownerOf(keep, "mem_keep")); err != nil {
		t.Fatalf("create keep: %v", err)
	}
	if err := groups.CreateWithOwner(ctx, drop, ownerOf(drop, "mem_drop")); err != nil {
		t.Fatalf("create drop: %v", err)
	}
	if _, err := members.InsertIfAbsent(ctx, &model.Membership{ID: "mem_guest", GroupID: "grp_drop", WalletAddress: "0xbbb", Role: model.RoleGuest}); err != nil {
		t.Fatalf("insert guest: %v", err)
	}

	if err := groups.DeleteCascade(ctx, "grp_drop"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := countRows(t, db, &model.Membership{}, "group_id = ?", "grp_drop"); n != 0 {
		t.Fatalf("expected no memberships left, got %d", n)
	}
	if n := countRows(t, db, &model.Group{}, "group_id = ?", "grp_drop"); n != 0 {
		t.Fatalf("expected group removed")
	}
	if n := countRows(t, db, &model.Membership{}, "group_id = ?", "grp_keep"); n != 1 {
		t.Fatalf("other group's membership touched, got %d", n)
	}
}

func TestTaskStore_DeleteCascade(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskStore(db)
	evidence := NewEvidenceStore(db)
	comments := NewCommentStore(db)
	ctx := context.Background()

	for _, id := range []string{"task_drop", "task_keep"} {
		if err := tasks.Create(ctx, &model.Task{TaskID: id, Title: id, Status: model.TaskStatusPending, Tags: []string{"a"}, UserID: "user_1"}); err != nil {
			t.Fatalf("create task: %v", err)
		}
		if err := evidence.AddAttachment(ctx, &model.Attachment{ID: "att_" + id, TaskID: id, UserID: "user_1", FileName: "f", FileURL: "u"}); err != nil {
			t.Fatalf("add attachment: %v", err)
		}
		if err := evidence.AddVerification(ctx, &model.Verification{ID: "ver_" + id, TaskID: id, UserID: "user_1", WalletAddress: "0xaaa", Message: "m", Signature: "s_" + id}); err != nil {
			t.Fatalf("add verification: %v", err)
		}
		if err := comments.Create(ctx, &model.Comment{ID: "cmt_" + id, TaskID: id, UserID: "user_1", WalletAddress: "0xaaa", Content: "c"}); err != nil {
			t.Fatalf("add comment: %v", err)
		}
	}

	if err := tasks.DeleteCascade(ctx, "task_drop"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, m := range []any{&model.Task{}, &model.Attachment{}, &model.Verification{}, &model.Comment{}} {
		if n := countRows(t, db, m, "task_id = ?", "task_drop"); n != 0 {
			t.Fatalf("%T rows left for deleted task: %d", m, n)
		}
		if n := countRows(t, db, m, "task_id = ?", "task_keep"); n != 1 {
			t.Fatalf("%T rows of other task changed: %d", m, n)
		}
	}
}

func TestMemberStore_InsertIfAbsent(t *testing.T) {
	db := newTestDB(t)
	members := NewMemberStore(db)
	ctx := context.Background()

	m := &model.Membership{ID: "mem_1", GroupID: "grp_1", WalletAddress: "0xaaa", Role: model.RoleMember}
	inserted, err := members.InsertIfAbsent(ctx, m)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	dup := &model.Membership{ID: "mem_2", GroupID: "grp_1", WalletAddress: "0xaaa", Role: model.RoleAdmin}
	inserted, err = members.InsertIfAbsent(ctx, dup)
	if err != nil || inserted {
		t.Fatalf("duplicate insert: inserted=%v err=%v", inserted, err)
	}
	if n := countRows(t, db, &model.Membership{}, "group_id = ?", "grp_1"); n != 1 {
		t.Fatalf("expected one membership, got %d", n)
	}
}

func TestMemberStore_UniqueIndexTranslated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.WithContext(ctx).Create(&model.Membership{ID: "mem_1", GroupID: "grp_1", WalletAddress: "0xaaa", Role: model.RoleMember}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	err := db.WithContext(ctx).Create(&model.Membership{ID: "mem_2", GroupID: "grp_1", WalletAddress: "0xaaa", Role: model.RoleMember}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

func TestGroupStore_ListWithoutOwnerMembership(t *testing.T) {
	db := newTestDB(t)
	groups := NewGroupStore(db)
	members := NewMemberStore(db)
	ctx := context.Background()

	owned := &model.Group{GroupID: "grp_owned", WalletAddress: "0xaaa", Name: "owned"}
	if err := groups.CreateWithOwner(ctx, owned, ownerOf(owned, "mem_owned")); err != nil {
		t.Fatalf("create owned: %v", err)
	}
	for _, g := range []model.Group{
		{GroupID: "grp_bare", WalletAddress: "0xbbb", Name: "bare"},
		{GroupID: "grp_guest_only", WalletAddress: "0xccc", Name: "guest only"},
	} {
		g := g
		if err := db.WithContext(ctx).Create(&g).Error; err != nil {
			t.Fatalf("create %s: %v", g.GroupID, err)
		}
	}
	// 其他钱包的成员记录不算 owner 记录
	if _, err := members.InsertIfAbsent(ctx, &model.Membership{ID: "mem_guest", GroupID: "grp_guest_only", WalletAddress: "0xaaa", Role: model.RoleGuest}); err != nil {
		t.Fatalf("insert guest: %v", err)
	}

	got, err := groups.ListWithoutOwnerMembership(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := make([]string, 0, len(got))
	for _, g := range got {
		ids = append(ids, g.GroupID)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "grp_bare" || ids[1] != "grp_guest_only" {
		t.Fatalf("unexpected ownerless groups %v", ids)
	}
}

func TestUserStore_FindMissingReturnsNil(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)

	u, err := users.FindByWallet(context.Background(), "0xmissing")
	if err != nil || u != nil {
		t.Fatalf("expected nil,nil got %+v, %v", u, err)
	}
}
