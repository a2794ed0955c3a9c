// Package storetest 提供 internal/store 的内存实现，供 service 与 api 的测试使用。
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"taskhub/internal/model"
)

// DB 是内存版存储，满足 service 包的全部存储接口，仅供测试使用。
// 查找类方法与 gorm 实现一致：记录不存在时返回 (nil, nil)。
type DB struct {
	mu            sync.Mutex
	Users         map[string]*model.User
	Groups        map[string]*model.Group
	Members       map[string]*model.Membership
	Tasks         map[string]*model.Task
	Attachments   []model.Attachment
	Verifications []model.Verification
	Comments      map[string]*model.Comment
}

// New 返回空的内存存储。
func New() *DB {
	return &DB{
		Users:    map[string]*model.User{},
		Groups:   map[string]*model.Group{},
		Members:  map[string]*model.Membership{},
		Tasks:    map[string]*model.Task{},
		Comments: map[string]*model.Comment{},
	}
}

// 各存储共享同一个 DB。
type UserStore struct{ *DB }
type GroupStore struct{ *DB }
type MemberStore struct{ *DB }
type TaskStore struct{ *DB }
type EvidenceStore struct{ *DB }
type CommentStore struct{ *DB }

func (d UserStore) FindByWallet(_ context.Context, wallet string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.Users {
		if u.WalletAddress == wallet {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (d UserStore) FindByID(_ context.Context, id string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.Users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (d UserStore) FindByIDs(_ context.Context, ids []string) ([]model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := d.Users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (d UserStore) List(_ context.Context) ([]model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.User{}
	for _, u := range d.Users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d UserStore) Create(_ context.Context, user *model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.Users {
		if u.WalletAddress == user.WalletAddress {
			return errors.New("duplicated key")
		}
	}
	cp := *user
	d.Users[user.ID] = &cp
	return nil
}

func (d UserStore) Update(_ context.Context, user *model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *user
	d.Users[user.ID] = &cp
	return nil
}

func (d UserStore) TouchLogin(_ context.Context, id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.Users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (d GroupStore) CreateWithOwner(_ context.Context, group *model.Group, owner *model.Membership) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g := *group
	m := *owner
	d.Groups[group.GroupID] = &g
	d.Members[owner.ID] = &m
	return nil
}

func (d GroupStore) FindByID(_ context.Context, id string) (*model.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g, ok := d.Groups[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, nil
}

func (d GroupStore) FindByIDs(_ context.Context, ids []string) ([]model.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Group{}
	for _, id := range ids {
		if g, ok := d.Groups[id]; ok {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (d GroupStore) List(_ context.Context, filter model.GroupFilter) ([]model.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Group{}
	for _, g := range d.Groups {
		if filter.IsPublic != nil && g.IsPublic != *filter.IsPublic {
			continue
		}
		if len(filter.WalletAddresses) > 0 && !contains(filter.WalletAddresses, g.WalletAddress) {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (d GroupStore) Update(_ context.Context, group *model.Group) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *group
	d.Groups[group.GroupID] = &cp
	return nil
}

func (d GroupStore) DeleteCascade(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for mid, m := range d.Members {
		if m.GroupID == id {
			delete(d.Members, mid)
		}
	}
	delete(d.Groups, id)
	return nil
}

func (d GroupStore) ListWithoutOwnerMembership(_ context.Context) ([]model.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Group{}
	for _, g := range d.Groups {
		found := false
		for _, m := range d.Members {
			if m.GroupID == g.GroupID && m.WalletAddress == g.WalletAddress {
				found = true
				break
			}
		}
		if !found {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (d MemberStore) Find(_ context.Context, groupID, wallet string) (*model.Membership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.Members {
		if m.GroupID == groupID && m.WalletAddress == wallet {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (d MemberStore) FindByID(_ context.Context, id string) (*model.Membership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.Members[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (d MemberStore) ListByGroup(_ context.Context, groupID string) ([]model.Membership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Membership{}
	for _, m := range d.Members {
		if m.GroupID == groupID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d MemberStore) ListByWallet(_ context.Context, wallet string) ([]model.Membership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Membership{}
	for _, m := range d.Members {
		if m.WalletAddress == wallet {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (d MemberStore) InsertIfAbsent(_ context.Context, m *model.Membership) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.Members {
		if existing.GroupID == m.GroupID && existing.WalletAddress == m.WalletAddress {
			return false, nil
		}
	}
	cp := *m
	d.Members[m.ID] = &cp
	return true, nil
}

func (d MemberStore) Update(_ context.Context, m *model.Membership) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *m
	d.Members[m.ID] = &cp
	return nil
}

func (d MemberStore) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.Members, id)
	return nil
}

func (d TaskStore) Create(_ context.Context, task *model.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *task
	d.Tasks[task.TaskID] = &cp
	return nil
}

func (d TaskStore) FindByID(_ context.Context, id string) (*model.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.Tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (d TaskStore) List(_ context.Context, filter model.TaskFilter) ([]model.Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Task{}
	for _, t := range d.Tasks {
		if filter.WalletAddress != "" && t.WalletAddress != filter.WalletAddress {
			continue
		}
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		if filter.GroupID != "" && t.GroupID != filter.GroupID {
			continue
		}
		if len(filter.GroupIDs) > 0 && !contains(filter.GroupIDs, t.GroupID) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

func (d TaskStore) Update(_ context.Context, task *model.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *task
	d.Tasks[task.TaskID] = &cp
	return nil
}

func (d TaskStore) DeleteCascade(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.Tasks, id)
	atts := d.Attachments[:0]
	for _, a := range d.Attachments {
		if a.TaskID != id {
			atts = append(atts, a)
		}
	}
	d.Attachments = atts
	vers := d.Verifications[:0]
	for _, v := range d.Verifications {
		if v.TaskID != id {
			vers = append(vers, v)
		}
	}
	d.Verifications = vers
	for cid, c := range d.Comments {
		if c.TaskID == id {
			delete(d.Comments, cid)
		}
	}
	return nil
}

func (d EvidenceStore) AddAttachment(_ context.Context, a *model.Attachment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Attachments = append(d.Attachments, *a)
	return nil
}

func (d EvidenceStore) ListAttachments(_ context.Context, taskID string) ([]model.Attachment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Attachment{}
	for _, a := range d.Attachments {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (d EvidenceStore) AddVerification(_ context.Context, v *model.Verification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Verifications = append(d.Verifications, *v)
	return nil
}

func (d EvidenceStore) ListVerifications(_ context.Context, taskID string) ([]model.Verification, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Verification{}
	for _, v := range d.Verifications {
		if v.TaskID == taskID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (d EvidenceStore) CountAttachments(_ context.Context, taskID, userID string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, a := range d.Attachments {
		if a.TaskID == taskID && (userID == "" || a.UserID == userID) {
			n++
		}
	}
	return n, nil
}

func (d EvidenceStore) CountVerifications(_ context.Context, taskID, userID string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, v := range d.Verifications {
		if v.TaskID == taskID && (userID == "" || v.UserID == userID) {
			n++
		}
	}
	return n, nil
}

func (d EvidenceStore) TasksWithAttachments(_ context.Context, taskIDs []string) (map[string]bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[string]bool{}
	for _, a := range d.Attachments {
		if contains(taskIDs, a.TaskID) {
			out[a.TaskID] = true
		}
	}
	return out, nil
}

func (d CommentStore) Create(_ context.Context, c *model.Comment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *c
	d.Comments[c.ID] = &cp
	return nil
}

func (d CommentStore) FindByID(_ context.Context, id string) (*model.Comment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.Comments[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (d CommentStore) ListByTask(_ context.Context, taskID string) ([]model.Comment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.Comment{}
	for _, c := range d.Comments {
		if c.TaskID == taskID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (d CommentStore) Update(_ context.Context, c *model.Comment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *c
	d.Comments[c.ID] = &cp
	return nil
}

func (d CommentStore) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.Comments, id)
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
