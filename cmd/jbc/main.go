package main

import (
	"context"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/ext/tlflag"

	"github.com/slowlang/jbc/compiler"
	"github.com/slowlang/jbc/compiler/back"
)

func main() {
	regFlag := cli.NewFlag("registers,r", -1, "register budget: -1 skips allocation, 0 is unlimited")

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile class files to jasmin assembler",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			regFlag,
			cli.NewFlag("output,o", "", "output directory, stdout if empty"),
		},
	}

	livenessCmd := &cli.Command{
		Name:        "liveness",
		Description: "print liveness sets and register assignment",
		Action:      livenessAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			regFlag,
		},
	}

	app := &cli.Command{
		Name:        "jbc",
		Description: "jbc is a jvm backend: register allocation and jasmin code generation",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("log", "stderr", "log output file (or stderr)"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.FlagfileFlag,
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			livenessCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	w, err := tlflag.OpenWriter(c.String("log"))
	if err != nil {
		return errors.Wrap(err, "open log file")
	}

	tlog.DefaultLogger = tlog.New(w)

	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func config(c *cli.Command) back.Config {
	r := c.Int("registers")
	if r == 0 {
		r = back.Unlimited
	}

	return back.Config{Registers: r}
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg := config(c)

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a, cfg)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		err = write(c.String("output"), a, obj)
		if err != nil {
			return errors.Wrap(err, "write %v", a)
		}
	}

	return nil
}

func livenessAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg := config(c)

	for _, a := range c.Args {
		out, err := compiler.LivenessFile(ctx, a, cfg)
		if err != nil {
			return errors.Wrap(err, "liveness %v", a)
		}

		_, err = os.Stdout.Write(out)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}
