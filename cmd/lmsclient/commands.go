package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-lms-client/api"
	"github.com/jrsteele09/go-lms-client/apierror"
	"github.com/jrsteele09/go-lms-client/request"
	"github.com/jrsteele09/go-lms-client/transport"
	"github.com/spf13/cobra"
)

type appKey struct{}

// NewRootCommand creates the lmsclient command tree
func NewRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "lmsclient",
		Short:         "Command line client for the essay LMS API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), configFile)
			if err != nil {
				return reportError(err)
			}
			cmd.SetContext(withApp(cmd, a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return appFrom(cmd).Close()
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default ./lmsclient.yaml)")
	cmd.AddCommand(
		NewLoginCommand(),
		NewLogoutCommand(),
		NewCallCommand(),
		NewCacheCommand(),
		NewWhoamiCommand(),
		NewImpersonateCommand(),
	)
	return cmd
}

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			displayAppname(a.cfg.GetAppName())

			s, err := a.handler.Login(cmd.Context(), map[string]any{"email": email, "password": password})
			if err != nil {
				return reportError(err)
			}
			return printJSON(map[string]any{
				"loggedIn":     s.LoggedIn,
				"role":         s.Role,
				"lang":         s.Lang,
				"accessExpiry": s.AccessExpiry(),
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("LMS_PASSWORD"), "account password (default $LMS_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the session and the response cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := appFrom(cmd).handler.Logout(cmd.Context()); err != nil {
				return reportError(err)
			}
			fmt.Fprintln(os.Stderr, "logged out")
			return nil
		},
	}
}

// NewCallCommand creates the call command
func NewCallCommand() *cobra.Command {
	var (
		data     string
		files    []string
		auth     bool
		opts     api.Options
		cacheOn  bool
		ttl      int64
		blob     bool
		language string
	)

	cmd := &cobra.Command{
		Use:   "call METHOD PATH",
		Short: "Call an API endpoint and print the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := map[string]any{}
			if data != "" {
				if err := json.Unmarshal([]byte(data), &input); err != nil {
					return reportError(fmt.Errorf("--data: %w", err))
				}
			}
			for _, arg := range files {
				if err := addFile(input, arg); err != nil {
					return reportError(err)
				}
			}

			switch {
			case ttl > 0:
				opts.Cache = api.CacheTTL(ttl)
			case cacheOn:
				opts.Cache = api.DefaultCache
			}
			if blob {
				opts.ResponseType = api.ResponseTypeBlob
			}
			opts.Language = language

			result, err := appFrom(cmd).handler.Call(cmd.Context(), api.Call{
				Method:        strings.ToUpper(args[0]),
				Path:          args[1],
				Input:         input,
				RequiresToken: auth || opts.Optional,
				Options:       opts,
			})
			if err != nil {
				return reportError(err)
			}
			return printResult(result)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&data, "data", "d", "", "JSON object payload")
	flags.StringArrayVarP(&files, "file", "f", nil, "attach a file as key=path (key_binary=path for a binary upload)")
	flags.BoolVar(&auth, "auth", false, "attach the session token")
	flags.BoolVar(&opts.Optional, "optional", false, "attach the token if there is one, never redirect to login")
	flags.BoolVar(&cacheOn, "cache", false, "use the response cache with the default TTL")
	flags.Int64Var(&ttl, "ttl", 0, "use the response cache with this TTL in milliseconds")
	flags.BoolVar(&opts.Flatten, "flatten", false, "flatten nested payload values into bracket keys")
	flags.BoolVar(&opts.Raw, "raw", false, "print the raw response without classification")
	flags.BoolVar(&blob, "blob", false, "write the response body to stdout as bytes")
	flags.BoolVar(&opts.SkipMocker, "skip-mocker", false, "always call the network")
	flags.StringVar(&language, "lang", "", "language override")
	return cmd
}

// NewCacheCommand creates the cache command group
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Response cache commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the response cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := appFrom(cmd).handler.ClearCache(cmd.Context()); err != nil {
				return reportError(err)
			}
			fmt.Fprintln(os.Stderr, "cache cleared")
			return nil
		},
	})
	return cmd
}

// NewWhoamiCommand creates the whoami command
func NewWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := appFrom(cmd).handler
			s, err := h.Session(cmd.Context())
			if err != nil {
				return reportError(err)
			}
			if s == nil {
				return printJSON(map[string]any{"loggedIn": false})
			}
			group, err := h.ImpersonatedGroup(cmd.Context())
			if err != nil {
				return reportError(err)
			}
			return printJSON(map[string]any{
				"loggedIn":          s.LoggedIn,
				"role":              s.Role,
				"lang":              s.Lang,
				"accessExpiry":      s.AccessExpiry(),
				"impersonate_group": group,
			})
		},
	}
}

// NewImpersonateCommand creates the impersonate command
func NewImpersonateCommand() *cobra.Command {
	var stop bool

	cmd := &cobra.Command{
		Use:   "impersonate [GROUP]",
		Short: "Act on behalf of a group, or stop with --clear",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := ""
			switch {
			case stop:
				// empty group stops impersonating
			case len(args) == 1:
				group = args[0]
			default:
				return reportError(fmt.Errorf("a group or --clear is required"))
			}
			if err := appFrom(cmd).handler.Impersonate(cmd.Context(), group); err != nil {
				return reportError(err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stop, "clear", false, "stop impersonating")
	return cmd
}

// addFile parses key=path and adds the file to input. A key ending in _binary marks
// the file as binary under the bare key.
func addFile(input map[string]any, arg string) error {
	key, path, ok := strings.Cut(arg, "=")
	if !ok || key == "" || path == "" {
		return fmt.Errorf("--file %q: want key=path", arg)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("--file %q: %w", arg, err)
	}

	f := &request.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(content),
		Content:     content,
	}
	if bare, found := strings.CutSuffix(key, "_binary"); found {
		key, f.Binary = bare, true
	}

	switch existing := input[key].(type) {
	case nil:
		input[key] = f
	case []any:
		input[key] = append(existing, f)
	default:
		input[key] = []any{existing, f}
	}
	return nil
}

func printResult(result any) error {
	switch r := result.(type) {
	case []byte:
		_, err := os.Stdout.Write(r)
		return err
	case *transport.Response:
		return printJSON(map[string]any{
			"status": r.Status,
			"header": r.Header,
			"body":   string(r.Body),
		})
	}
	return printJSON(result)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError prints the normalized error to stderr and returns it for the exit code.
func reportError(err error) error {
	apiErr := apierror.Normalize(err)
	data, marshalErr := json.MarshalIndent(apiErr, "", "  ")
	if marshalErr != nil {
		fmt.Fprintln(os.Stderr, apiErr.Error())
		return apiErr
	}
	fmt.Fprintln(os.Stderr, string(data))
	return apiErr
}
