package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/rider"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/service"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/transport"
)

type command func(ctx context.Context, c *rider.Client, w io.Writer, args []string) error

var commands = map[string]command{
	"login":    cmdLogin,
	"verify":   cmdVerify,
	"logout":   cmdLogout,
	"whoami":   cmdWhoami,
	"profile":  cmdProfile,
	"contacts": cmdContacts,
}

// run executes args[0] with the remaining arguments.
func run(ctx context.Context, c *rider.Client, w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return cmd(ctx, c, w, args[1:])
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func cmdLogin(ctx context.Context, c *rider.Client, w io.Writer, args []string) error {
	fs := newFlagSet("login")
	mobile := fs.String("mobile", "", "mobile number")
	if err := parse(fs, args); err != nil {
		return err
	}
	msg, err := c.Login(ctx, *mobile)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, msg)
	return nil
}

func cmdVerify(ctx context.Context, c *rider.Client, w io.Writer, args []string) error {
	fs := newFlagSet("verify")
	mobile := fs.String("mobile", "", "mobile number")
	otp := fs.String("otp", "", "one-time password")
	if err := parse(fs, args); err != nil {
		return err
	}
	sess, err := c.VerifyOTP(ctx, *mobile, *otp)
	if err != nil {
		return err
	}
	out := map[string]any{"user": sess.User}
	if !sess.ExpiresAt.IsZero() {
		out["expiresAt"] = sess.ExpiresAt
	}
	printJSON(w, out)
	return nil
}

func cmdLogout(ctx context.Context, c *rider.Client, w io.Writer, _ []string) error {
	if err := c.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "ok")
	return nil
}

func cmdWhoami(ctx context.Context, c *rider.Client, w io.Writer, _ []string) error {
	if !c.IsLoggedIn(ctx) {
		return errs.ErrUnauthenticated
	}
	u, _ := c.GetCachedUser(ctx)
	printJSON(w, u)
	return nil
}

// ------- profile -------

func cmdProfile(ctx context.Context, c *rider.Client, w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: profile needs get, refresh or save", errUsage)
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "get":
		p, err := c.GetCachedProfile(ctx)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("no cached profile: %w", errs.ErrNotFound)
		}
		printJSON(w, p)

	case "refresh":
		fs := newFlagSet("profile refresh")
		user := fs.Int64("user", 0, "user id (default: logged-in user)")
		if err := parse(fs, args); err != nil {
			return err
		}
		p, err := c.RefreshProfile(ctx, *user)
		if err != nil {
			return err
		}
		printJSON(w, p)

	case "save":
		fs := newFlagSet("profile save")
		var form service.ProfileForm
		fs.StringVar(&form.FullName, "name", "", "full name")
		fs.StringVar(&form.Gender, "gender", "", "gender")
		fs.StringVar(&form.DOB, "dob", "", "date of birth (YYYY-MM-DD)")
		fs.StringVar(&form.City, "city", "", "city")
		fs.StringVar(&form.Email, "email", "", "email")
		image := fs.String("image", "", "profile image file")
		if err := parse(fs, args); err != nil {
			return err
		}
		if *image != "" {
			f, err := readImage(*image)
			if err != nil {
				return err
			}
			form.Image = f
		}
		p, err := c.SaveProfile(ctx, 0, form)
		if err != nil {
			return err
		}
		printJSON(w, p)

	default:
		return fmt.Errorf("%w: unknown profile command %q", errUsage, sub)
	}
	return nil
}

// readImage loads an upload from disk, or from stdin for "-".
func readImage(p string) (*transport.File, error) {
	var (
		b   []byte
		err error
	)
	if p == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(p)
	}
	if err != nil {
		return nil, err
	}
	name := filepath.Base(p)
	if p == "-" {
		name = "image"
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &transport.File{Field: "image", Name: name, ContentType: ct, Data: b}, nil
}

// ------- contacts -------

func cmdContacts(ctx context.Context, c *rider.Client, w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: contacts needs a subcommand", errUsage)
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "list":
		fs := newFlagSet("contacts list")
		cached := fs.Bool("cached", false, "show the local copy only")
		if err := parse(fs, args); err != nil {
			return err
		}
		var (
			list []model.EmergencyContact
			err  error
		)
		if *cached {
			list, err = c.Contacts.Cached(ctx)
		} else {
			list, err = c.ListContacts(ctx)
		}
		if err != nil {
			return err
		}
		printJSON(w, contactRows(list))

	case "sync":
		list, err := c.SyncContacts(ctx)
		if err != nil {
			return err
		}
		printJSON(w, contactRows(list))

	case "add":
		fs := newFlagSet("contacts add")
		var in service.ContactInput
		fs.StringVar(&in.Name, "name", "", "name")
		fs.StringVar(&in.Number, "number", "", "phone number")
		fs.StringVar(&in.Address, "address", "", "address")
		fs.BoolVar(&in.IsPrimary, "primary", false, "make primary")
		rel := fs.String("rel", "", "relationship: "+relationships())
		if err := parse(fs, args); err != nil {
			return err
		}
		in.Relationship = model.Relationship(strings.ToLower(strings.TrimSpace(*rel)))
		created, err := c.AddContact(ctx, in)
		if created != nil {
			printJSON(w, created)
		}
		return err

	case "edit":
		fs := newFlagSet("contacts edit")
		id := fs.Int64("id", 0, "contact id")
		name := fs.String("name", "", "name")
		number := fs.String("number", "", "phone number")
		address := fs.String("address", "", "address")
		rel := fs.String("rel", "", "relationship")
		if err := parse(fs, args); err != nil {
			return err
		}
		if *id == 0 {
			return fmt.Errorf("%w: contacts edit needs -id", errUsage)
		}
		var patch service.ContactPatch
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				patch.Name = name
			case "number":
				patch.Number = number
			case "address":
				patch.Address = address
			case "rel":
				r := model.Relationship(strings.ToLower(*rel))
				patch.Relationship = &r
			}
		})
		updated, err := c.Contacts.Update(ctx, *id, patch)
		if err != nil {
			return err
		}
		printJSON(w, updated)

	case "primary":
		id, err := contactID("contacts primary", args)
		if err != nil {
			return err
		}
		list, err := c.SetPrimaryContact(ctx, id)
		if err != nil {
			return err
		}
		printJSON(w, contactRows(list))

	case "delete":
		id, err := contactID("contacts delete", args)
		if err != nil {
			return err
		}
		msg, err := c.DeleteContact(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, msg)

	default:
		return fmt.Errorf("%w: unknown contacts command %q", errUsage, sub)
	}
	return nil
}

func contactID(name string, args []string) (int64, error) {
	fs := newFlagSet(name)
	id := fs.Int64("id", 0, "contact id")
	if err := parse(fs, args); err != nil {
		return 0, err
	}
	if *id <= 0 {
		return 0, fmt.Errorf("%w: %s needs -id", errUsage, name)
	}
	return *id, nil
}

type contactRow struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Number       string `json:"number"`
	Relationship string `json:"relationship"`
	Primary      bool   `json:"primary"`
}

func contactRows(list []model.EmergencyContact) []contactRow {
	rows := make([]contactRow, 0, len(list))
	for _, c := range list {
		rows = append(rows, contactRow{
			ID:           c.ID,
			Name:         c.Name,
			Number:       c.Number,
			Relationship: string(c.Relationship),
			Primary:      bool(c.IsPrimary),
		})
	}
	return rows
}

func relationships() string {
	names := make([]string, 0, len(model.Relationships))
	for _, r := range model.Relationships {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}
