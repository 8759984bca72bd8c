// rdap is the query CLI: it classifies a token, resolves the
// authoritative server through the IANA bootstrap registries, fetches the
// response following referrals, runs the conformance checks, and renders
// the result. Configuration comes from RDAP_* environment variables,
// optionally seeded from rdap.env in the configuration directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/datum-labs/rdapkit/bootstrap"
	"github.com/datum-labs/rdapkit/check"
	"github.com/datum-labs/rdapkit/client"
	"github.com/datum-labs/rdapkit/internal/cfg"
	"github.com/datum-labs/rdapkit/query"
	"github.com/datum-labs/rdapkit/rdap"
)

type options struct {
	qtype         string
	baseURL       string
	base          string
	preset        string
	output        string
	checkTypes    []string
	errorOnChecks bool
	toJSContact   string
	expectExts    []string
	allowUnreg    bool
	timeout       time.Duration
}

// exitError carries the table code for main to pass to os.Exit.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func fail(code int, err error) error { return &exitError{code: code, err: err} }

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:           "rdap <query>",
		Short:         "RDAP query and conformance tool",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return run(args[0], opts)
		},
	}

	f := root.Flags()
	f.StringVarP(&opts.qtype, "type", "t", "", "force the query type instead of inferring it")
	f.StringVar(&opts.baseURL, "base-url", "", "query this base URL instead of bootstrapping")
	f.StringVarP(&opts.base, "base", "b", "", "resolve the base through this object tag")
	f.StringVarP(&opts.preset, "preset", "p", "", "link traversal preset (registry|registrar|up|down|top|bottom)")
	f.StringVarP(&opts.output, "output", "O", "", "output format (auto|json|pretty-json)")
	f.StringSliceVarP(&opts.checkTypes, "check-type", "C", nil, "check classes to show (info|spec-note|std-warn|std-err|cidr0-err|icann-err|all)")
	f.BoolVar(&opts.errorOnChecks, "error-on-checks", false, "exit non-zero when shown checks have findings")
	f.StringVar(&opts.toJSContact, "to-jscontact", "", "convert entity contacts (none|also|only)")
	f.StringSliceVarP(&opts.expectExts, "expect-extension", "e", nil, "extension id the response must declare ('a|b' for alternates)")
	f.BoolVar(&opts.allowUnreg, "allow-unregistered-extensions", false, "do not flag extensions absent from the IANA registry")
	f.DurationVar(&opts.timeout, "timeout", 60*time.Second, "total deadline for the query")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rdap:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitInternal)
	}
}

func run(token string, opts *options) error {
	configDir, err := cfg.ConfigDir()
	if err != nil {
		configDir = ""
	}
	conf, err := cfg.LoadClient(configDir)
	if err != nil {
		return fail(exitClientConfig, err)
	}
	log := cfg.Logger(conf.Log)

	output := opts.output
	if output == "" {
		output = conf.Output
	}
	switch output {
	case "auto", "json", "pretty-json":
	default:
		return fail(exitUnknownOption, fmt.Errorf("unknown output format %q", output))
	}

	hint := query.HintNone
	if opts.qtype != "" {
		h, ok := query.ParseHint(opts.qtype)
		if !ok {
			return fail(exitUnknownType, fmt.Errorf("unknown query type %q", opts.qtype))
		}
		hint = h
	}

	q, err := query.Classify(token, hint)
	if err != nil {
		return fail(exitCodeFor(err), err)
	}

	policy := client.Policy{BaseURL: opts.baseURL, ObjectTag: opts.base}
	if policy.BaseURL == "" {
		policy.BaseURL = conf.BaseURL
	}
	if policy.ObjectTag == "" {
		policy.ObjectTag = conf.Base
	}
	if opts.preset != "" {
		lp, ok := client.Preset(opts.preset)
		if !ok {
			return fail(exitUnknownOption, fmt.Errorf("unknown preset %q", opts.preset))
		}
		policy.Links = lp
	}

	c, err := newClient(conf, log, configDir)
	if err != nil {
		return fail(exitClientConfig, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	result, err := c.Do(ctx, q, policy)
	if err != nil {
		return fail(exitCodeFor(err), err)
	}

	return render(result, conf, opts, output)
}

func newClient(conf *cfg.Client, log *logrus.Logger, configDir string) (*client.Client, error) {
	cacheDir, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}
	boot := bootstrap.NewStore(
		bootstrap.WithCacheDir(cacheDir),
		bootstrap.WithConfigDir(configDir),
		bootstrap.WithLogger(log),
	)

	copts := []client.Option{
		client.WithBootstrap(boot),
		client.WithLogger(log),
		client.WithMaxRetries(conf.MaxRetries),
		client.WithMaxRetryWait(time.Duration(conf.MaxRetrySecs) * time.Second),
		client.WithDefRetryWait(time.Duration(conf.DefRetrySecs) * time.Second),
	}
	if conf.NoCache {
		copts = append(copts, client.WithNoCache())
	}
	if conf.AllowHTTP {
		copts = append(copts, client.WithAllowHTTP())
	}
	if conf.AllowInvalidCertificates || conf.AllowInvalidHostNames {
		copts = append(copts, client.WithHTTPDoer(client.NewHTTPClient(client.TransportPolicy{
			AllowInvalidHostNames:    conf.AllowInvalidHostNames,
			AllowInvalidCertificates: conf.AllowInvalidCertificates,
		})))
	}
	return client.New(copts...), nil
}

func render(result *client.Result, conf *cfg.Client, opts *options, output string) error {
	classes, err := checkClasses(opts.checkTypes)
	if err != nil {
		return fail(exitUnknownOption, err)
	}
	params := check.Params{
		AllowUnregistered:  opts.allowUnreg,
		ExpectedExtensions: opts.expectExts,
	}
	redaction := redactionOptions(conf.RedactionFlags)
	jsMode := rdap.ParseJSContactMode(opts.toJSContact)

	anyFound := false
	for _, res := range result.Flatten() {
		if res.Response == nil {
			continue
		}
		res.Response.ConvertEntitiesJSContact(jsMode)
		check.SimplifyRedactions(res.Response, redaction)
		p := params
		p.LoopHrefs = res.Loops
		checks := check.Do(res.Response, p)

		switch output {
		case "json":
			body, serr := res.Response.Serialize()
			if serr != nil {
				return fail(exitInternal, serr)
			}
			fmt.Println(string(body))
		case "pretty-json":
			body, serr := res.Response.SerializeIndent()
			if serr != nil {
				return fail(exitInternal, serr)
			}
			fmt.Println(string(body))
		default:
			body, serr := res.Response.SerializeIndent()
			if serr != nil {
				return fail(exitInternal, serr)
			}
			color.New(color.Bold).Printf("== %s\n", res.URL)
			fmt.Println(string(body))
			printChecks(checks, classes)
		}

		if check.Any(checks, classes) {
			anyFound = true
		}
	}

	if e := errResponse(result); e != nil && e.ErrorCode != nil {
		return fail(exitCodeForRdapError(*e.ErrorCode),
			fmt.Errorf("server answered RDAP error %d", *e.ErrorCode))
	}
	if opts.errorOnChecks && anyFound {
		return fail(exitChecksFound, fmt.Errorf("conformance checks found findings"))
	}
	return nil
}

func errResponse(result *client.Result) *rdap.Error {
	if result.Response == nil {
		return nil
	}
	return result.Response.Err()
}

// checkClasses resolves the --check-type values; the default set is the
// warnings and errors.
func checkClasses(names []string) ([]check.Class, error) {
	if len(names) == 0 {
		return []check.Class{check.StdWarn, check.StdErr, check.Cidr0Err, check.IcannErr}, nil
	}
	var out []check.Class
	for _, name := range names {
		if strings.EqualFold(name, "all") {
			return check.AllClasses, nil
		}
		c, err := check.ParseClass(strings.ReplaceAll(name, "-", ""))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func redactionOptions(flags []string) check.RedactionOptions {
	var opts check.RedactionOptions
	for _, f := range flags {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "show-rfc9537":
			opts.ShowRaw = true
		case "do-not-simplify-rfc9537":
			opts.DoNotSimplify = true
		}
	}
	return opts
}

// per-class rendering colors, severity warm to cold
var classColors = map[check.Class]*color.Color{
	check.Info:     color.New(color.FgCyan),
	check.SpecNote: color.New(color.FgGreen),
	check.StdWarn:  color.New(color.FgYellow),
	check.StdErr:   color.New(color.FgRed),
	check.Cidr0Err: color.New(color.FgHiRed),
	check.IcannErr: color.New(color.FgMagenta),
}

func printChecks(checks check.Checks, classes []check.Class) {
	check.Traverse(checks, classes, func(path string, item check.Item) {
		c := classColors[item.Class]
		if c == nil {
			c = color.New()
		}
		fmt.Printf("%s %s\n", path, c.Sprint(item.String()))
	})
}
