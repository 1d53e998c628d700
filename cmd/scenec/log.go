package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sambeau/scenery/config"
	"github.com/sambeau/scenery/server"
)

// logDateLayout is translated by monday for the chosen language
const logDateLayout = "Mon 2 Jan 2006 15:04:05"

// mondayLocales maps language_REGION to a monday locale
var mondayLocales = map[string]monday.Locale{
	"en_US": monday.LocaleEnUS,
	"en_GB": monday.LocaleEnGB,
	"de_DE": monday.LocaleDeDE,
	"fr_FR": monday.LocaleFrFR,
	"fr_CA": monday.LocaleFrCA,
	"es_ES": monday.LocaleEsES,
	"it_IT": monday.LocaleItIT,
	"pt_PT": monday.LocalePtPT,
	"pt_BR": monday.LocalePtBR,
	"nl_NL": monday.LocaleNlNL,
	"ja_JP": monday.LocaleJaJP,
}

// mondayLocale picks the date locale for tag, using the most likely region
// when the tag names none
func mondayLocale(tag language.Tag) monday.Locale {
	base, _ := tag.Base()
	region, _ := tag.Region()
	if loc, ok := mondayLocales[base.String()+"_"+region.String()]; ok {
		return loc
	}
	return monday.LocaleEnUS
}

// logCommand prints recent analyses from the language server's dev log
func logCommand(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	uri := fs.String("uri", "", "Only show analyses of this document")
	sinceFlag := fs.String("since", "", "Only show analyses since this date")
	limit := fs.Int("limit", 20, "Number of analyses to show")
	lang := fs.String("lang", "en", "Language for dates and numbers")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	tag, err := language.Parse(*lang)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --lang %q: %v\n", *lang, err)
		return 2
	}
	var since time.Time
	if *sinceFlag != "" {
		if since, err = dateparse.ParseAny(*sinceFlag); err != nil {
			fmt.Fprintf(stderr, "Error: invalid --since %q: %v\n", *sinceFlag, err)
			return 2
		}
	}

	cfg, ok := loadConfig(*configPath, getenv, stderr)
	if !ok {
		return 2
	}
	driver, source := cfg.DevLog.Driver, cfg.DevLog.Path
	if driver == "" {
		driver = "sqlite"
	}
	if driver == "sqlite" {
		if _, err := os.Stat(source); err != nil {
			fmt.Fprintf(stderr, "Error: no dev log at %s\n", source)
			return 2
		}
	} else {
		source = cfg.DevLog.DSN
	}
	maxSize, _ := config.ParseSize(cfg.DevLog.MaxSize)

	dl, err := server.OpenDevLog(driver, source, maxSize, cfg.DevLog.TruncatePct)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer dl.Close()

	records, err := dl.Entries(*uri, since, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	p := message.NewPrinter(tag)
	locale := mondayLocale(tag)
	for _, r := range records {
		p.Fprintf(stdout, "%s  %-8s %8dµs  %s", monday.Format(r.Timestamp.Local(), logDateLayout, locale), r.Stage, r.DurationUs, r.URI)
		if r.FirstError != "" {
			fmt.Fprintf(stdout, "  %s", r.FirstError)
		}
		fmt.Fprintln(stdout)
	}
	p.Fprintf(stdout, "%d %s\n", len(records), plural(len(records), "analysis", "analyses"))
	return 0
}
