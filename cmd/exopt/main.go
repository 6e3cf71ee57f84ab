// Command exopt is a thin demonstration wrapper around the optimizer core:
// it builds a few sample graphs through the builder API, runs them to their
// fixpoint and prints the resulting values, types and diagnostics. The real
// inbound surface is the builder API; a source parser is an external
// collaborator.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"exopt/internal/gcp"
	"exopt/internal/node"
	"exopt/internal/types"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("exopt", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	verbose := fs.Bool("v", false, "trace the fixpoint")
	demo := fs.String("demo", "all", "demo graph to run (const|inline|poly|all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var log *zap.Logger
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer l.Sync()
		log = l
	} else {
		log = zap.NewNop()
	}

	demos := map[string]func(*zap.Logger) error{
		"const":  demoConst,
		"inline": demoInline,
		"poly":   demoPoly,
	}
	if *demo != "all" {
		f, ok := demos[*demo]
		if !ok {
			return fmt.Errorf("unknown demo: %s", *demo)
		}
		return f(log)
	}
	for _, name := range []string{"const", "inline", "poly"} {
		fmt.Printf("=== %s ===\n", name)
		if err := demos[name](log); err != nil {
			return err
		}
	}
	return nil
}

// demoConst folds 3+4 to a constant.
func demoConst(log *zap.Logger) error {
	gcp.ResetToInit0()
	mem := node.NewCon(types.ALLMEM)
	rez := node.NewPrim("+", node.NewCon(types.IntCon(3)), node.NewCon(types.IntCon(4)))
	scope := node.NewScope(mem, rez)

	o := gcp.New(gcp.WithLogger(log))
	if err := o.Run(scope); err != nil {
		return err
	}
	fmt.Print(node.Dump(scope))
	fmt.Printf("result: %s\n", types.Str(rez.Val()))
	return nil
}

// demoInline calls an identity function and watches the call collapse.
func demoInline(log *zap.Logger) error {
	gcp.ResetToInit0()
	fun := node.NewFun("id", types.SCALAR)
	parm := node.NewParm(fun, 0)
	pmem := node.NewParm(fun, node.MemParmIdx)
	node.NewRet(fun, pmem, parm, fun)

	ctrl := node.NewCon(types.CTRL)
	mem := node.NewCon(types.ALLMEM)
	defmem := node.NewDefMem()
	fdx := node.NewFunPtr(fun)
	call := node.NewCall(ctrl, mem, fdx, node.NewCon(types.IntCon(42)))
	cepi := node.NewCallEpi(call, defmem)
	scope := node.NewScope(node.NewMProj(cepi), node.NewProj(cepi, 2))

	o := gcp.New(gcp.WithLogger(log))
	if err := o.Run(scope); err != nil {
		return err
	}
	fmt.Print(node.Dump(scope))
	fmt.Printf("result: %s\n", types.Str(scope.Rez().Val()))
	return nil
}

// demoPoly fresh-instantiates a polymorphic identity at two sites.
func demoPoly(log *zap.Logger) error {
	gcp.ResetToInit0()
	fun := node.NewFun("id", types.SCALAR)
	parm := node.NewParm(fun, 0)
	pmem := node.NewParm(fun, node.MemParmIdx)
	node.NewRet(fun, pmem, parm, fun)

	fdx := node.NewFunPtr(fun)
	siteInt := node.NewFresh(fdx, nil)
	sitePtr := node.NewFresh(fdx, nil)

	ctrl := node.NewCon(types.CTRL)
	mem := node.NewCon(types.ALLMEM)
	defmem := node.NewDefMem()
	callInt := node.NewCall(ctrl, mem, siteInt, node.NewCon(types.IntCon(7)))
	epiInt := node.NewCallEpi(callInt, defmem)
	callPtr := node.NewCall(ctrl, node.NewMProj(epiInt), sitePtr, node.NewNew())
	epiPtr := node.NewCallEpi(callPtr, defmem)

	rez := node.NewProj(epiPtr, 2)
	scope := node.NewScope(node.NewMProj(epiPtr), rez)

	o := gcp.New(gcp.WithLogger(log))
	if err := o.Run(scope); err != nil {
		return err
	}
	fmt.Print(node.Dump(scope))
	fmt.Printf("id  : %s\n", fun.TV().Str())
	fmt.Printf("use1: %s\n", siteInt.TV().Str())
	fmt.Printf("use2: %s\n", sitePtr.TV().Str())
	return nil
}
