package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"gradebox/internal/cli/config"
	httpclient "gradebox/internal/cli/http"
	"gradebox/internal/cli/output"
	"gradebox/internal/executor/model"

	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "configs/cli.yaml"

type session struct {
	client  *httpclient.Client
	printer *output.Printer
	rawJSON bool
	pretty  bool
}

func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "executor-cli",
		Usage: "talk to the code execution service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: defaultConfigPath, Usage: "path to config file"},
			&cli.StringFlag{Name: "base", Usage: "override base URL"},
			&cli.DurationFlag{Name: "http-timeout", Usage: "override HTTP timeout (e.g. 30s)"},
			&cli.BoolFlag{Name: "pretty", Usage: "indent JSON output"},
			&cli.BoolFlag{Name: "json", Usage: "print the raw JSON response"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable coloured output"},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "execute a source file once",
				Flags: []cli.Flag{
					langFlag(), fileFlag(), timeoutFlag(),
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "stdin contents"},
					&cli.StringFlag{Name: "input-file", Usage: "file with stdin contents"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := newSession(cmd, w)
					if err != nil {
						return err
					}
					return s.run(ctx, cmd)
				},
			},
			{
				Name:  "test",
				Usage: "execute a source file against visible test cases",
				Flags: []cli.Flag{
					langFlag(), fileFlag(), timeoutFlag(),
					&cli.StringFlag{Name: "cases", Aliases: []string{"c"}, Usage: "JSON file with [{input_data, expected_output, weight}]", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := newSession(cmd, w)
					if err != nil {
						return err
					}
					return s.test(ctx, cmd)
				},
			},
			{
				Name:  "grade",
				Usage: "grade a source file with hidden tests and plagiarism checks",
				Flags: []cli.Flag{
					langFlag(), fileFlag(), timeoutFlag(),
					&cli.StringFlag{Name: "request", Aliases: []string{"r"}, Usage: "JSON file with test case categories and peer submissions", Required: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := newSession(cmd, w)
					if err != nil {
						return err
					}
					return s.grade(ctx, cmd)
				},
			},
			{
				Name:      "compare",
				Usage:     "score the similarity of two source files",
				ArgsUsage: "<file1> <file2>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "language id or alias"}},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := newSession(cmd, w)
					if err != nil {
						return err
					}
					return s.compare(ctx, cmd)
				},
			},
			{
				Name:  "languages",
				Usage: "list supported languages",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := newSession(cmd, w)
					if err != nil {
						return err
					}
					var resp model.SupportedLanguagesResponse
					if _, err := s.client.Call(ctx, http.MethodGet, "/supported-languages", nil, &resp); err != nil {
						return err
					}
					if s.rawJSON {
						return s.printer.JSON(resp, s.pretty)
					}
					s.printer.Languages(resp)
					return nil
				},
			},
			{
				Name:  "health",
				Usage: "check service health",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					s, err := newSession(cmd, w)
					if err != nil {
						return err
					}
					var resp model.HealthResponse
					if _, err := s.client.Call(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
						return err
					}
					if s.rawJSON {
						return s.printer.JSON(resp, s.pretty)
					}
					s.printer.Health(resp)
					return nil
				},
			},
		},
	}
}

func langFlag() cli.Flag {
	return &cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "language id or alias", Required: true}
}

func fileFlag() cli.Flag {
	return &cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "source file", Required: true}
}

func timeoutFlag() cli.Flag {
	return &cli.FloatFlag{Name: "timeout", Usage: "per-run timeout in seconds (0 uses the language default)"}
}

func newSession(cmd *cli.Command, w io.Writer) (*session, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if base := cmd.String("base"); base != "" {
		cfg.BaseURL = base
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if timeout := cmd.Duration("http-timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	return &session{
		client:  httpclient.New(cfg.BaseURL, cfg.Timeout),
		printer: output.NewPrinter(w, cfg.NoColor || cmd.Bool("no-color")),
		rawJSON: cfg.JSON || cmd.Bool("json"),
		pretty:  cfg.Pretty() || cmd.Bool("pretty"),
	}, nil
}

func (s *session) run(ctx context.Context, cmd *cli.Command) error {
	code, err := readFile(cmd.String("file"))
	if err != nil {
		return err
	}
	input := cmd.String("input")
	if path := cmd.String("input-file"); path != "" {
		if input, err = readFile(path); err != nil {
			return err
		}
	}
	req := model.ExecuteRequest{
		Code:      code,
		Language:  cmd.String("lang"),
		InputData: input,
		Timeout:   cmd.Float("timeout"),
	}
	var resp model.ExecuteResponse
	if _, err := s.client.Call(ctx, http.MethodPost, "/execute", req, &resp); err != nil {
		return err
	}
	if s.rawJSON {
		if err := s.printer.JSON(resp, s.pretty); err != nil {
			return err
		}
	} else {
		s.printer.Execute(resp)
	}
	return exitStatus(resp.Status == model.StatusSuccess)
}

func (s *session) test(ctx context.Context, cmd *cli.Command) error {
	code, err := readFile(cmd.String("file"))
	if err != nil {
		return err
	}
	req := model.ExecuteWithTestsRequest{
		Code:     code,
		Language: cmd.String("lang"),
		Timeout:  cmd.Float("timeout"),
	}
	if err := readJSON(cmd.String("cases"), &req.TestCases); err != nil {
		return err
	}
	var resp model.ExecuteWithTestsResponse
	if _, err := s.client.Call(ctx, http.MethodPost, "/execute-with-tests", req, &resp); err != nil {
		return err
	}
	if s.rawJSON {
		if err := s.printer.JSON(resp, s.pretty); err != nil {
			return err
		}
	} else {
		s.printer.Tests(resp)
	}
	return exitStatus(resp.ExecutionResult.Status == model.StatusSuccess)
}

func (s *session) grade(ctx context.Context, cmd *cli.Command) error {
	var req model.PlagiarismExecutionRequest
	if err := readJSON(cmd.String("request"), &req); err != nil {
		return err
	}
	code, err := readFile(cmd.String("file"))
	if err != nil {
		return err
	}
	req.Code = code
	req.Language = cmd.String("lang")
	if timeout := cmd.Float("timeout"); timeout > 0 {
		req.Timeout = timeout
	}
	var resp model.PlagiarismExecutionResponse
	if _, err := s.client.Call(ctx, http.MethodPost, "/execute-code-with-plagiarism-checks", req, &resp); err != nil {
		return err
	}
	if s.rawJSON {
		if err := s.printer.JSON(resp, s.pretty); err != nil {
			return err
		}
	} else {
		s.printer.Grade(resp)
	}
	return exitStatus(resp.Status == model.StatusSuccess)
}

func (s *session) compare(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("compare needs exactly two files")
	}
	code1, err := readFile(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	code2, err := readFile(cmd.Args().Get(1))
	if err != nil {
		return err
	}
	req := model.PlagiarismCheckRequest{Code1: code1, Code2: code2, Language: cmd.String("lang")}
	var resp model.PlagiarismCheckResponse
	if _, err := s.client.Call(ctx, http.MethodPost, "/plagiarism-check", req, &resp); err != nil {
		return err
	}
	if s.rawJSON {
		return s.printer.JSON(resp, s.pretty)
	}
	s.printer.Compare(resp)
	return nil
}

// exitStatus turns an unsuccessful verdict into exit code 1 without a message.
func exitStatus(ok bool) error {
	if ok {
		return nil
	}
	return cli.Exit("", 1)
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s failed: %w", path, err)
	}
	return string(data), nil
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s failed: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s failed: %w", path, err)
	}
	return nil
}
