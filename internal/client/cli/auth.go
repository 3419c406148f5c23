package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chatline/internal/common"
	"github.com/dmitrijs2005/chatline/internal/filex"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for username, email, password and an optional avatar
// file and creates the account. The new account is signed in.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	avatarPath, err := getSimpleText(a.reader, "Avatar image path (empty for none)", a.out)
	if err != nil {
		return err
	}
	var avatar *filex.Attachment
	if avatarPath != "" {
		if avatar, err = filex.ReadAttachment(avatarPath, a.c.Config.MaxAttachmentBytes); err != nil {
			return err
		}
	}

	id, err := a.c.Accounts.Register(ctx, username, email, string(password), avatar)
	if err != nil {
		return err
	}

	a.printf("Account created, signed in as %s\n", id.Email)
	return nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	id, err := a.c.Accounts.Login(ctx, email, string(password))
	if err != nil {
		return err
	}

	a.printf("Signed in as %s\n", id.Email)
	return nil
}

// Logout ends the session; the open conversation is closed with it.
func (a *App) Logout(ctx context.Context) error {
	if err := a.c.Accounts.Logout(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	a.found = nil
	a.media = nil
	a.mu.Unlock()
	a.c.Composer.Clear()
	a.println("Signed out")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	st := a.c.Profiles.State()
	if st.Profile == nil {
		if st.IsLoading {
			a.println("Profile is loading")
			return nil
		}
		return fmt.Errorf("profile unavailable: %w", common.ErrNotFound)
	}
	a.println(renderProfile(st.Profile, fmt.Sprintf("%d blocked", len(st.Profile.Blocked))))
	return nil
}
