package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/core/user"
	dummydb "github.com/kymoni/elimu/storage/database/dummy"
)

var usrRepo user.Repository

type kbStub struct {
	added []chat.NewDocument
}

func (s *kbStub) AddDocument(_ context.Context, nd chat.NewDocument) (chat.Document, error) {
	s.added = append(s.added, nd)
	return chat.Document{ID: "doc", Subject: nd.Subject, Topic: nd.Topic}, nil
}

func setup(t *testing.T) (*commandLine, *kbStub) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)

	kb := &kbStub{}
	cli := &commandLine{
		usrRepo: usrRepo,
		newKB:   func() (documentAdder, error) { return kb, nil },
	}
	return cli, kb
}

func createUser(t *testing.T, name, uname, email, pwd string) user.User {
	active := true
	usr := user.User{Name: name, Username: uname, Email: email, IsActive: &active}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	extra   interface{}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := createUser(t, "User", "awe", "awe@test.sch", "mdr")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("LePassword"), nil }

	// creates a fresh admin
	if err := cli.run([]string{"admin", "adduser", "-username", "boss", "-email", "boss@test.sch", "-admin"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	usr, err := usrRepo.GetUserByUsername(context.Background(), "boss")
	if err != nil {
		t.Fatalf("GetUserByUsername() failed: %v", err)
	}
	if !usr.IsAdmin() {
		t.Error("expected an admin user")
	}
	if usr.CheckPassword("LePassword") != nil {
		t.Error("password was not set")
	}

	// updates the existing user in place
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("NewPassword"), nil }
	if err := cli.run([]string{"admin", "adduser", "-username", "boss", "-email", "boss@test.sch"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	refreshed, err := usrRepo.GetUserByUsername(context.Background(), "boss")
	if err != nil {
		t.Fatalf("GetUserByUsername() failed: %v", err)
	}
	if refreshed.ID != usr.ID {
		t.Errorf("expected an update, got a new user %q", refreshed.ID)
	}
	if refreshed.CheckPassword("NewPassword") != nil {
		t.Error("password was not updated")
	}

	// missing email
	if err := cli.run([]string{"admin", "adduser", "-username", "lonely"}); err != errHelp {
		t.Errorf("cli.run() error = %v, wantErr %v", err, errHelp)
	}
}

func Test_commandLine_seedKnowledgeBase(t *testing.T) {
	cli, kb := setup(t)

	if err := cli.run([]string{"admin", "seedkb"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	if len(kb.added) != len(starterDocuments) {
		t.Errorf("seeded %d documents; want %d", len(kb.added), len(starterDocuments))
	}
}

// user commands must not build the knowledge base; it needs credentials a
// plain admin box does not have.
func Test_commandLine_userCommandsSkipKnowledgeBase(t *testing.T) {
	cli, _ := setup(t)
	cli.newKB = func() (documentAdder, error) {
		t.Fatal("knowledge base built for a user command")
		return nil, nil
	}

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("LePassword"), nil }

	if err := cli.run([]string{"admin", "adduser", "-username", "plain", "-email", "plain@test.sch"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
	if err := cli.run([]string{"admin", "resetpassword", "-username", "plain"}); err != nil {
		t.Fatalf("cli.run() failed: %v", err)
	}
}
