package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clifmatch/internal/clangast"
	"clifmatch/internal/config"
	"clifmatch/internal/diag"
	"clifmatch/internal/headerdb"
	"clifmatch/internal/oracle"
	"clifmatch/internal/trace"
)

func addOracleFlags(cmd *cobra.Command) {
	cmd.Flags().String("oracle", "", "oracle kind (model|clang)")
	cmd.Flags().String("model", "", "header model for the model oracle (.yaml fixture or clang .json AST dump)")
	cmd.Flags().String("clang", "", "clang binary for the clang oracle")
	cmd.Flags().String("std", "", "C++ standard passed to clang")
	cmd.Flags().StringSlice("clang-arg", nil, "extra clang argument (repeatable)")
	cmd.Flags().String("cache-dir", "", "clang AST cache directory")
	cmd.Flags().Bool("no-cache", false, "do not cache clang AST dumps")
	cmd.Flags().StringSliceP("include", "I", nil, "header search path (repeatable)")
}

// oracleSettings merges the oracle flags over the manifest.
func (a *app) oracleSettings(cmd *cobra.Command) (config.OracleConfig, error) {
	oc := a.cfg.Oracle
	var err error
	if oc.Kind, err = stringSetting(cmd, "oracle", oc.Kind); err != nil {
		return oc, err
	}
	oc.Kind = strings.ToLower(strings.TrimSpace(oc.Kind))
	if oc.Model, err = stringSetting(cmd, "model", oc.Model); err != nil {
		return oc, err
	}
	if oc.Clang, err = stringSetting(cmd, "clang", oc.Clang); err != nil {
		return oc, err
	}
	if oc.Std, err = stringSetting(cmd, "std", oc.Std); err != nil {
		return oc, err
	}
	if oc.CacheDir, err = stringSetting(cmd, "cache-dir", oc.CacheDir); err != nil {
		return oc, err
	}
	if oc.Args, err = stringsSetting(cmd, "clang-arg", oc.Args); err != nil {
		return oc, err
	}
	if cmd.Flags().Changed("no-cache") {
		if oc.NoCache, err = cmd.Flags().GetBool("no-cache"); err != nil {
			return oc, err
		}
	}
	return oc, nil
}

// buildOracle returns the oracle the settings name. Problems that leave
// the oracle usable, such as an unwritable cache, go to r.
func buildOracle(oc config.OracleConfig, tr trace.Tracer, r diag.Reporter) (oracle.Oracle, error) {
	switch oc.Kind {
	case config.OracleModel, "":
		if oc.Model == "" {
			return nil, &config.Error{Code: diag.ConfigBadValue, Msg: "the model oracle needs a header model (--model or [oracle].model)"}
		}
		db, err := headerdb.LoadFile(oc.Model)
		if err != nil {
			return nil, fmt.Errorf("load header model: %w", err)
		}
		return headerdb.NewOracle(db), nil
	case config.OracleClang:
		opts := clangast.Options{
			Clang:  oc.Clang,
			Std:    oc.Std,
			Args:   oc.Args,
			Tracer: tr,
		}
		if !oc.NoCache {
			cache, err := clangast.OpenCache(oc.CacheDir)
			if err != nil {
				diag.ReportWarning(r, diag.OracleCacheFailed, diag.Span{File: oc.CacheDir}, err.Error()).
					WithNote(diag.Span{}, "continuing without the clang AST cache").
					Emit()
			} else {
				opts.Cache = cache
			}
		}
		o := clangast.New(opts)
		if err := o.Available(); err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, &config.Error{Code: diag.ConfigBadValue, Msg: fmt.Sprintf("unknown oracle kind %q (expected %s or %s)", oc.Kind, config.OracleModel, config.OracleClang)}
}
