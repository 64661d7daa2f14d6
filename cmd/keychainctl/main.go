package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"cloud-keychain/internal/keychain"
	"cloud-keychain/internal/platform"
)

func main() {
	app := kingpin.New("keychainctl", "Manage an encrypted cloud keychain")
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)

	var cfg config
	app.Flag("keychain", "path to the .cloudkeychain directory").Short('k').
		Envar("KEYCHAIN_PATH").Default("./1Password.cloudkeychain").StringVar(&cfg.path)
	app.Flag("profile", "profile name").Default(keychain.DefaultProfileName).StringVar(&cfg.profile)
	app.Flag("mongo", "MongoDB URI; stores the keychain in MongoDB instead of files").
		Envar("KEYCHAIN_MONGO_URI").StringVar(&cfg.mongoURI)
	app.Flag("db", "Mongo database name").Default("keychain").StringVar(&cfg.db)
	app.Flag("iterations", "PBKDF2 iterations for a new keychain").
		Default("10000").IntVar(&cfg.iterations)
	app.Flag("audit", "append keychain events to this hash-chained log").
		Envar("KEYCHAIN_AUDIT").StringVar(&cfg.auditPath)
	app.Flag("verbose", "verbose logging").Short('v').BoolVar(&cfg.verbose)

	appCreate := app.Command("create", "create a new keychain")
	appCreateHint := appCreate.Flag("hint", "password hint stored in clear").String()

	appAdd := app.Command("add", "add a login item")
	appAddTitle := appAdd.Arg("title", "item title").Required().String()
	appAddUser := appAdd.Flag("user", "username").Short('u').String()
	appAddPass := appAdd.Flag("pass", "password, or gen:N to generate N characters").String()
	appAddURL := appAdd.Flag("url", "website").String()
	appAddNotes := appAdd.Flag("notes", "notes").String()
	appAddOTP := appAdd.Flag("otp", "otpauth:// URI or base32 TOTP secret").String()

	appGet := app.Command("get", "show an item")
	appGetQuery := appGet.Arg("item", "item uuid or title pattern").Required().String()
	appGetPrint := appGet.Flag("print", "print the password on console").Short('p').Bool()
	appGetClip := appGet.Flag("clip", "copy the password into the clipboard").Short('c').Bool()
	appGetClipTTL := appGet.Flag("clip-ttl", "clear the clipboard after this long").Default("30s").Duration()

	appList := app.Command("list", "list items")
	appListTrashed := appList.Flag("trashed", "include trashed items").Bool()

	appFind := app.Command("find", "find items whose title matches a pattern")
	appFindQuery := appFind.Arg("pattern", "case-insensitive regular expression").Required().String()

	appSetPass := app.Command("setpass", "change the password of an item")
	appSetPassID := appSetPass.Arg("item", "item uuid").Required().String()
	appSetPassPass := appSetPass.Flag("pass", "new password, or gen:N").String()

	appPasswd := app.Command("passwd", "change the keychain password")

	appDelete := app.Command("delete", "move an item to the trash")
	appDeleteID := appDelete.Arg("item", "item uuid").Required().String()
	appDeletePurge := appDelete.Flag("purge", "remove the item instead of trashing it").Bool()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	logrus.SetLevel(logrus.WarnLevel)
	if cfg.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if err := platform.DisableCoreDumps(); err != nil {
		logrus.WithError(err).Warn("could not disable core dumps")
	}

	s, err := newSession(cfg)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	defer s.close()

	switch cmd {
	case appCreate.FullCommand():
		err = s.create(*appCreateHint)
	case appAdd.FullCommand():
		err = s.add(keychain.Login{
			Title:    *appAddTitle,
			Username: *appAddUser,
			Password: *appAddPass,
			URL:      *appAddURL,
			Notes:    *appAddNotes,
			OTP:      *appAddOTP,
		})
	case appGet.FullCommand():
		err = s.get(*appGetQuery, *appGetPrint, *appGetClip, *appGetClipTTL)
	case appList.FullCommand():
		err = s.list(*appListTrashed)
	case appFind.FullCommand():
		err = s.find(*appFindQuery)
	case appSetPass.FullCommand():
		err = s.setPass(*appSetPassID, *appSetPassPass)
	case appPasswd.FullCommand():
		err = s.passwd()
	case appDelete.FullCommand():
		err = s.delete(*appDeleteID, *appDeletePurge)
	}
	if err != nil {
		s.close()
		logrus.Fatalf("%v", err)
	}
}

// clipboardGrace keeps the process alive long enough for the clipboard to
// be cleared.
const clipboardGrace = 500 * time.Millisecond
