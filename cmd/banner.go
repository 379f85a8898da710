package main

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
)

func printBanner(w io.Writer) {
	banner := figure.NewFigure("FMC", "isometric1", true)
	cyan := color.New(color.FgCyan)
	cyan.Fprintln(w, banner.String())
	fmt.Fprintln(w)
}
