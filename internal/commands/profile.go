package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"todo/internal/app"
	"todo/internal/config"
	"todo/internal/exitcode"
	"todo/internal/output"
	"todo/internal/service"
)

func init() {
	Register(&ProfileCmd{})
}

// ProfileCmd implements the profile command. Without flags it prints the
// profile; with flags it updates the given fields and prints the result.
type ProfileCmd struct {
	name     string
	phone    string
	address  string
	document string
	picture  string
	lat      float64
	lon      float64
	fs       *pflag.FlagSet
}

func (c *ProfileCmd) Name() string      { return "profile" }
func (c *ProfileCmd) Aliases() []string { return nil }
func (c *ProfileCmd) Synopsis() string  { return "Show or update the profile" }
func (c *ProfileCmd) Usage() string {
	return "todo profile [--name --phone --address --document --picture --lat --lon]"
}
func (c *ProfileCmd) Requires() Requirement { return NeedsAuth }

func (c *ProfileCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.name, "name", "", "")
	fs.StringVar(&c.phone, "phone", "", "")
	fs.StringVar(&c.address, "address", "", "")
	fs.StringVar(&c.document, "document", "", "")
	fs.StringVar(&c.picture, "picture", "", "")
	fs.Float64Var(&c.lat, "lat", 0, "")
	fs.Float64Var(&c.lon, "lon", 0, "")
	c.fs = fs
}

func (c *ProfileCmd) Run(ctx context.Context, cfg *config.Config, env *app.Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	update, err := c.update()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if update.Empty() {
		user, ok := env.Session.User()
		if !ok {
			fmt.Fprintln(errOut, notLoggedIn)
			return exitcode.AuthError
		}
		output.FormatUser(out, user)
		return exitcode.Success
	}

	user, err := env.Session.UpdateProfile(ctx, update)
	if err != nil {
		return reportError(errOut, err)
	}
	if !cfg.Quiet {
		output.FormatUser(out, user)
	}
	return exitcode.Success
}

// update collects the flags that were given into a ProfileUpdate.
func (c *ProfileCmd) update() (service.ProfileUpdate, error) {
	var u service.ProfileUpdate
	if c.fs == nil {
		return u, nil
	}
	str := func(name string, value string) *string {
		if !c.fs.Changed(name) {
			return nil
		}
		return &value
	}
	u.Name = str("name", c.name)
	u.Phone = str("phone", c.phone)
	u.Address = str("address", c.address)
	u.DocumentID = str("document", c.document)
	u.ProfilePicture = str("picture", c.picture)

	latSet, lonSet := c.fs.Changed("lat"), c.fs.Changed("lon")
	if latSet != lonSet {
		return u, fmt.Errorf("--lat and --lon must be given together")
	}
	if latSet {
		if c.lat < -90 || c.lat > 90 || c.lon < -180 || c.lon > 180 {
			return u, fmt.Errorf("invalid location: %g, %g", c.lat, c.lon)
		}
		u.Location = &service.Location{Latitude: c.lat, Longitude: c.lon}
	}
	return u, nil
}
