package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/midbel/cli"
	"github.com/midbel/xslt/xml"
	"github.com/midbel/xslt/xslt"
)

var transformCmd = cli.Command{
	Name:    "transform",
	Summary: "apply a stylesheet to an xml document",
	Handler: &TransformCmd{},
	Usage:   "transform [-o output] [-m mode] [-d dir] [-p name=value]... <stylesheet.xsl> <document.xml>",
}

var versionCmd = cli.Command{
	Name:    "version",
	Summary: "print the version of this build",
	Handler: &VersionCmd{},
}

type TransformCmd struct{}

// paramList collects repeated -p name=value flags into xslt.Options.
type paramList []xslt.Option

func (p *paramList) String() string { return "" }

func (p *paramList) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return fmt.Errorf("-p expects name=value, got %q", raw)
	}
	*p = append(*p, xslt.WithParam(name, value))
	return nil
}

func (c *TransformCmd) Run(args []string) error {
	var (
		set    = cli.NewFlagSet("transform")
		output = set.String("o", "", "write result to file instead of stdout")
		trace  = set.Bool("trace", false, "trace instruction execution to stderr")
		mode   = set.String("m", "", "initial template mode")
		dir    = set.String("d", "", "base directory for document() side loads")
		params paramList
	)
	set.Var(&params, "p", "bind a stylesheet parameter as name=value (repeatable)")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 2 {
		return fmt.Errorf("transform: expected a stylesheet and a document")
	}

	style, err := xslt.Load(set.Arg(0))
	if err != nil {
		return fmt.Errorf("compile stylesheet: %w", err)
	}
	if *trace {
		style.Tracer = xslt.Stderr()
	}

	doc, err := xml.ParseFile(set.Arg(1))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	opts := append([]xslt.Option{xslt.WithInitialMode(*mode), xslt.WithBaseDir(*dir)}, params...)
	result, err := xslt.Transform(style, doc, opts...)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	w := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return style.Serialize(result, w)
}

type VersionCmd struct{}

func (c *VersionCmd) Run(_ []string) error {
	fmt.Println("xslt 1.0")
	return nil
}
