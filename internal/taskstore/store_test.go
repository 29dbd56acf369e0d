package taskstore_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"todo/internal/service"
	"todo/internal/session"
	"todo/internal/taskstore"
	"todo/internal/testutil"
)

const owner = "ana@example.com"

// staticToken is a TokenSource with a fixed token.
type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

// newStore returns a store authenticated as owner against a fresh fake.
func newStore(t *testing.T) (*taskstore.Store, *testutil.FakeService) {
	t.Helper()
	svc := testutil.NewFakeService()
	svc.AddUser(owner, "secret")
	svc.SetToken("abc123", owner)
	return taskstore.New(svc, staticToken("abc123")), svc
}

func ids(tasks []service.Task) []int {
	result := make([]int, len(tasks))
	for i, t := range tasks {
		result[i] = t.ID
	}
	return result
}

func TestNoToken(t *testing.T) {
	svc := testutil.NewFakeService()
	s := taskstore.New(svc, staticToken(""))
	ctx := context.Background()

	if _, err := s.ListTasks(ctx, 0, 10); !errors.Is(err, taskstore.ErrNoToken) {
		t.Errorf("ListTasks: expected ErrNoToken, got %v", err)
	}
	if _, err := s.CreateTask(ctx, "Pay bill", ""); !errors.Is(err, taskstore.ErrNoToken) {
		t.Errorf("CreateTask: expected ErrNoToken, got %v", err)
	}
	if _, err := s.UpdateTask(ctx, 1, service.TaskUpdate{}); !errors.Is(err, taskstore.ErrNoToken) {
		t.Errorf("UpdateTask: expected ErrNoToken, got %v", err)
	}
	if err := s.DeleteTask(ctx, 1); !errors.Is(err, taskstore.ErrNoToken) {
		t.Errorf("DeleteTask: expected ErrNoToken, got %v", err)
	}
	if _, err := s.ToggleCompleted(ctx, 1); !errors.Is(err, taskstore.ErrNoToken) {
		t.Errorf("ToggleCompleted: expected ErrNoToken, got %v", err)
	}
	if n := svc.Calls("ListTasks") + svc.Calls("CreateTask") + svc.Calls("UpdateTask") + svc.Calls("DeleteTask"); n != 0 {
		t.Errorf("expected no remote calls, got %d", n)
	}
}

func TestListTasks_ServerOrder(t *testing.T) {
	s, svc := newStore(t)
	a := svc.AddTask(owner, "A", "", false)
	b := svc.AddTask(owner, "B", "", true)

	tasks, err := s.ListTasks(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []service.Task{a, b}
	if !slices.Equal(tasks, want) {
		t.Errorf("expected %+v, got %+v", want, tasks)
	}
	if !slices.Equal(s.Tasks(), want) {
		t.Errorf("expected local %+v, got %+v", want, s.Tasks())
	}
}

func TestListTasks_FullReplace(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	c := svc.AddTask(owner, "C", "", false)
	if _, err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	// C disappears server-side; A and B are new.
	svc.DeleteTask(ctx, "abc123", c.ID)
	a := svc.AddTask(owner, "A", "", false)
	b := svc.AddTask(owner, "B", "", false)

	if _, err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Task(c.ID); ok {
		t.Error("expected C to be gone after refresh")
	}
	if got := ids(s.Tasks()); !slices.Equal(got, []int{a.ID, b.ID}) {
		t.Errorf("expected [%d %d], got %v", a.ID, b.ID, got)
	}
}

func TestListTasks_PageDiscardsOtherPages(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		svc.AddTask(owner, title, "", false)
	}

	if _, err := s.ListTasks(ctx, 0, 2); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 tasks, got %d", s.Len())
	}
	page, err := s.ListTasks(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || s.Len() != 1 || s.Tasks()[0].Title != "three" {
		t.Errorf("expected only the second page locally, got %+v", s.Tasks())
	}
}

func TestLocate_LocalEntryNeedsNoFetch(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	task := svc.AddTask(owner, "Pay bill", "", false)
	s.Refresh(ctx)
	before := svc.Calls("ListTasks")

	got, err := s.Locate(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != task {
		t.Errorf("expected %+v, got %+v", task, got)
	}
	if svc.Calls("ListTasks") != before {
		t.Error("expected no remote call")
	}
}

func TestLocate_LaterPage(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	var last service.Task
	for i := range taskstore.DefaultLimit + 2 {
		last = svc.AddTask(owner, fmt.Sprintf("task %d", i+1), "", false)
	}
	s.Refresh(ctx)

	got, err := s.Locate(ctx, last.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != last {
		t.Errorf("expected %+v, got %+v", last, got)
	}
	if s.Len() != 2 {
		t.Errorf("expected the second page locally, got %d tasks", s.Len())
	}

	toggled, err := s.ToggleCompleted(ctx, last.ID)
	if err != nil || !toggled.Completed {
		t.Errorf("toggle after locate: %+v, %v", toggled, err)
	}
}

func TestLocate_Unknown(t *testing.T) {
	s, svc := newStore(t)
	svc.AddTask(owner, "Pay bill", "", false)

	_, err := s.Locate(context.Background(), 99)
	if !errors.Is(err, taskstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := svc.Calls("ListTasks"); n != 1 {
		t.Errorf("expected one page fetched, got %d", n)
	}
}

func TestLocate_NoToken(t *testing.T) {
	s := taskstore.New(testutil.NewFakeService(), staticToken(""))

	if _, err := s.Locate(context.Background(), 1); !errors.Is(err, taskstore.ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}

func TestListTasks_DefaultsAndValidation(t *testing.T) {
	s, svc := newStore(t)
	for i := 0; i < taskstore.DefaultLimit+5; i++ {
		svc.AddTask(owner, "t", "", false)
	}

	tasks, err := s.ListTasks(context.Background(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != taskstore.DefaultLimit {
		t.Errorf("expected %d tasks, got %d", taskstore.DefaultLimit, len(tasks))
	}
	if _, err := s.ListTasks(context.Background(), -1, 10); err == nil {
		t.Error("expected error for negative skip")
	}
}

func TestListTasks_FailureKeepsCollection(t *testing.T) {
	s, svc := newStore(t)
	svc.AddTask(owner, "A", "", false)
	s.Refresh(context.Background())

	svc.ListTasksErr = errors.New("server error")
	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.Len() != 1 {
		t.Errorf("expected collection unchanged, got %d entries", s.Len())
	}
}

func TestCreateTask_AppendsServerCopy(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	for i := 0; i < 41; i++ {
		svc.AddTask(owner, "filler", "", false)
	}
	s.Refresh(ctx)

	task, err := s.CreateTask(ctx, "Pay bill", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := service.Task{ID: 42, Title: "Pay bill", Completed: false}
	if task != want {
		t.Errorf("expected %+v, got %+v", want, task)
	}
	tasks := s.Tasks()
	if tail := tasks[len(tasks)-1]; tail != want {
		t.Errorf("expected tail %+v, got %+v", want, tail)
	}
}

func TestCreateTask_LengthAndUniqueIDs(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seen := make(map[int]bool)

	for i := 0; i < 10; i++ {
		before := s.Len()
		task, err := s.CreateTask(ctx, "task", "details")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if s.Len() != before+1 {
			t.Fatalf("expected length %d, got %d", before+1, s.Len())
		}
		if seen[task.ID] {
			t.Fatalf("duplicate id %d", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestCreateTask_Failure(t *testing.T) {
	s, svc := newStore(t)
	svc.CreateTaskErr = errors.New("server error")

	if _, err := s.CreateTask(context.Background(), "Pay bill", ""); err == nil {
		t.Fatal("expected error")
	}
	if s.Len() != 0 {
		t.Errorf("expected empty collection, got %d", s.Len())
	}
}

func TestCreateTask_EmptyTitle(t *testing.T) {
	s, svc := newStore(t)

	if _, err := s.CreateTask(context.Background(), "   ", ""); !errors.Is(err, taskstore.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if svc.Calls("CreateTask") != 0 {
		t.Error("expected no remote call")
	}
}

func TestUpdateTask_RequestThenApply(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	task := svc.AddTask(owner, "Pay bill", "", false)
	s.Refresh(ctx)

	title := "Pay electricity bill"
	svc.BeforeUpdateTask = func(id int, _ service.TaskUpdate) {
		local, _ := s.Task(id)
		if local.Title != "Pay bill" {
			t.Error("update must not change local state before the server answers")
		}
	}
	got, err := s.UpdateTask(ctx, task.ID, service.TaskUpdate{Title: &title})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != title {
		t.Errorf("unexpected task %+v", got)
	}
	if local, _ := s.Task(task.ID); local.Title != title {
		t.Errorf("expected local entry replaced, got %+v", local)
	}
}

func TestUpdateTask_Failure(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	task := svc.AddTask(owner, "Pay bill", "", false)
	s.Refresh(ctx)

	svc.UpdateTaskErr = errors.New("server error")
	title := "other"
	if _, err := s.UpdateTask(ctx, task.ID, service.TaskUpdate{Title: &title}); err == nil {
		t.Fatal("expected error")
	}
	if local, _ := s.Task(task.ID); local != task {
		t.Errorf("expected local entry unchanged, got %+v", local)
	}
}

func TestDeleteTask_PreservesOrder(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	var all []service.Task
	for i := 0; i < 45; i++ {
		all = append(all, svc.AddTask(owner, "t", "", false))
	}
	s.Refresh(ctx)

	if err := s.DeleteTask(ctx, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var want []int
	for _, task := range all {
		if task.ID != 42 {
			want = append(want, task.ID)
		}
	}
	if got := ids(s.Tasks()); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDeleteTask_Failure(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	task := svc.AddTask(owner, "Pay bill", "", false)
	s.Refresh(ctx)

	svc.DeleteTaskErr = errors.New("server error")
	if err := s.DeleteTask(ctx, task.ID); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := s.Task(task.ID); !ok {
		t.Error("expected entry to remain")
	}
}

func TestToggleCompleted_OptimisticThenConfirmed(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	task := svc.AddTask(owner, "Pay bill", "", false)
	s.Refresh(ctx)

	var sawOptimistic bool
	svc.BeforeUpdateTask = func(id int, _ service.TaskUpdate) {
		local, _ := s.Task(id)
		sawOptimistic = local.Completed
	}
	svc.AfterUpdateTask = func(t *service.Task) {
		t.Description = "done via server"
	}

	got, err := s.ToggleCompleted(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawOptimistic {
		t.Error("expected completed=true locally before the server answered")
	}
	if !got.Completed || got.Description != "done via server" {
		t.Errorf("unexpected result %+v", got)
	}
	if local, _ := s.Task(task.ID); local != got {
		t.Errorf("expected local entry reconciled with server, got %+v", local)
	}
}

func TestToggleCompleted_RollbackOnFailure(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	task := svc.AddTask(owner, "Pay bill", "", false)
	s.Refresh(ctx)

	var sawOptimistic bool
	svc.BeforeUpdateTask = func(id int, _ service.TaskUpdate) {
		local, _ := s.Task(id)
		sawOptimistic = local.Completed
	}
	svc.UpdateTaskErr = errors.New("network down")

	_, err := s.ToggleCompleted(ctx, task.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, svc.UpdateTaskErr) {
		t.Errorf("expected the server error to propagate, got %v", err)
	}
	if !sawOptimistic {
		t.Error("expected completed=true locally before the server answered")
	}
	if local, _ := s.Task(task.ID); local != task {
		t.Errorf("expected entry restored to %+v, got %+v", task, local)
	}
}

func TestToggleCompleted_NotFound(t *testing.T) {
	s, svc := newStore(t)

	_, err := s.ToggleCompleted(context.Background(), 99)
	if !errors.Is(err, taskstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if svc.Calls("UpdateTask") != 0 {
		t.Error("expected no remote call")
	}
}

func TestToggleCompleted_SerializedPerTask(t *testing.T) {
	s, svc := newStore(t)
	ctx := context.Background()
	task := svc.AddTask(owner, "Pay bill", "", false)
	s.Refresh(ctx)

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var calls int
	svc.UpdateTaskErr = errors.New("network down")
	svc.BeforeUpdateTask = func(int, service.TaskUpdate) {
		calls++
		if calls == 1 {
			close(firstStarted)
			<-release
			return
		}
		// The second toggle reaches the server only after the first has
		// rolled back, and it succeeds.
		svc.UpdateTaskErr = nil
	}

	var wg sync.WaitGroup
	var firstErr, secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.ToggleCompleted(ctx, task.ID)
	}()
	<-firstStarted

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, secondErr = s.ToggleCompleted(ctx, task.ID)
	}()

	time.Sleep(20 * time.Millisecond)
	if n := svc.Calls("UpdateTask"); n != 1 {
		t.Errorf("expected the second toggle to wait, got %d remote calls", n)
	}
	close(release)
	wg.Wait()

	if firstErr == nil {
		t.Error("expected the first toggle to fail")
	}
	if secondErr != nil {
		t.Errorf("expected the second toggle to succeed, got %v", secondErr)
	}
	local, _ := s.Task(task.ID)
	remote := svc.TasksOf(owner)[0]
	if !local.Completed || local != remote {
		t.Errorf("expected local %+v to match server %+v with completed=true", local, remote)
	}
}

func TestResyncOnTokenAcquired(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(owner, "secret")
	svc.AddTask(owner, "A", "", false)
	svc.AddTask(owner, "B", "", false)

	sess := session.New(svc, testutil.NewMemStore())
	s := taskstore.New(svc, sess)
	s.Attach(sess)

	sess.Restore(context.Background())
	if svc.Calls("ListTasks") != 0 {
		t.Fatalf("expected no fetch without a session, got %d", svc.Calls("ListTasks"))
	}

	if !sess.Login(context.Background(), owner, "secret") {
		t.Fatal("login failed")
	}
	if svc.Calls("ListTasks") != 1 {
		t.Errorf("expected one fetch after login, got %d", svc.Calls("ListTasks"))
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 tasks, got %d", s.Len())
	}
}

func TestResyncOnRestore(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(owner, "secret")
	svc.SetToken("abc123", owner)
	svc.AddTask(owner, "A", "", false)
	keys := testutil.NewMemStore()
	keys.Set(context.Background(), session.TokenKey, "abc123")

	sess := session.New(svc, keys)
	s := taskstore.New(svc, sess)
	s.Attach(sess)
	sess.Restore(context.Background())

	if s.Len() != 1 {
		t.Errorf("expected restored session to fetch tasks, got %d", s.Len())
	}
}

func TestResyncFailureIsNotFatal(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(owner, "secret")
	svc.ListTasksErr = errors.New("server error")

	sess := session.New(svc, testutil.NewMemStore())
	s := taskstore.New(svc, sess)
	s.Attach(sess)
	sess.Restore(context.Background())

	if !sess.Login(context.Background(), owner, "secret") {
		t.Fatal("expected login to succeed despite the failed resync")
	}
	if s.Len() != 0 {
		t.Errorf("expected empty collection, got %d", s.Len())
	}
}
