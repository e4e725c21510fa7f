/*

Admixk post-processes fastStructure runs. It chooses the model
complexity from the run logs and meanQ files, compiles a per-K metrics
table and plots ancestry proportions.

The basic usage looks like this:

	admixk choosek --input=faststructure_K

, this will read faststructure_K*.log and faststructure_K*.meanQ and
report K maximizing the marginal likelihood and the number of model
components used to explain structure in the data.

A county/state grouped plot for K=3:

	admixk plot --input=faststructure_K --k 3 --labels names.txt --grouped

To see all the options run:

	admixk --help

*/
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/op/go-logging"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("admixk")
var formatter = logging.MustStringFormatter(`%{message}`)

// modules are the logging modules of all the packages.
var modules = []string{"admixk", "loglik", "qmatrix", "choosek", "runcache", "geo", "admixplot", "launch"}

// command-line options
var (
	// application
	app = kingpin.New("admixk", "fastStructure model choice and admixture plots").Version(version)

	// technical
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF  = app.Flag("json", "write json summary to a file").String()
	cacheF = app.Flag("cache", "cache extracted values in a database file").String()

	// choosek
	chooseKCmd   = app.Command("choosek", "choose model complexity")
	chooseKTag   = chooseKCmd.Flag("input", "file tag, files are <input>*.log and <input>*.meanQ").Required().String()
	chooseKTable = chooseKCmd.Flag("table", "write per-run metrics table to a file").String()

	// metrics
	metricsCmd   = app.Command("metrics", "compile per-K metrics table")
	metricsTag   = metricsCmd.Flag("input", "file tag").Default("faststructure_K").String()
	metricsKMin  = metricsCmd.Flag("kmin", "minimal K").Default("1").Int()
	metricsKMax  = metricsCmd.Flag("kmax", "maximal K").Default("10").Int()
	metricsOut   = metricsCmd.Flag("out", "table file").Default("k_metrics_data.txt").String()
	metricsNpy   = metricsCmd.Flag("npy", "also write the metrics as a numpy array").String()
	metricsLnLF  = metricsCmd.Flag("plot-likelihood", "plot marginal likelihood over K to a file").String()
	metricsBestF = metricsCmd.Flag("plot-bestk", "plot model components used over K to a file").String()

	// plot
	plotCmd     = app.Command("plot", "stacked bar plot of ancestry proportions")
	plotK       = plotCmd.Flag("k", "number of components").Required().Int()
	plotTag     = plotCmd.Flag("input", "file tag, meanQ file is <input><k>.<k>.meanQ").Default("faststructure_K").String()
	plotMeanQ   = plotCmd.Flag("meanq", "meanQ file (overrides --input)").ExistingFile()
	plotLabels  = plotCmd.Flag("labels", "sample labels, one per line").Required().ExistingFile()
	plotGrouped = plotCmd.Flag("grouped", "sort and label samples by county/state").Bool()
	plotGroups  = plotCmd.Flag("groups", "grouping rules JSON file (implies --grouped)").ExistingFile()
	plotColors  = plotCmd.Flag("color", "component color (#rrggbb or name), repeat for every component").Strings()
	plotOut     = plotCmd.Flag("out", "output file (pdf, png or svg)").String()

	// run
	runCmd    = app.Command("run", "run fastStructure for a range of K")
	runBinary = runCmd.Flag("binary", "fastStructure binary").Default("structure.py").String()
	runInput  = runCmd.Flag("input", "fastStructure input").Required().String()
	runOutput = runCmd.Flag("output", "output prefix, K is appended").Default("faststructure_K").String()
	runFormat = runCmd.Flag("format", "input format").Default("str").Enum("str", "bed")
	runFull   = runCmd.Flag("full", "write all the output files").Default("true").Bool()
	runKMin   = runCmd.Flag("kmin", "minimal K").Default("1").Int()
	runKMax   = runCmd.Flag("kmax", "maximal K").Default("10").Int()
	runSeed   = runCmd.Flag("seed", "base seed, seed for K is seed+K").Default("29092025").Int64()
	runTask   = runCmd.Flag("task", "run a single K (array task id)").Envar("SLURM_ARRAY_TASK_ID").Default("0").Int()
	runDry    = runCmd.Flag("dry-run", "print command lines only").Bool()
)

// setupLogging configures the logging backend and levels.
func setupLogging() (closer func()) {
	logging.SetFormatter(formatter)

	closer = func() {}
	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		closer = func() { f.Close() }
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range modules {
		logging.SetLevel(level, m)
	}
	return closer
}

// run executes the command and returns the exit status. Deferred
// cleanup (cache, log file) happens before the process exits.
func run(args []string) int {
	command, err := app.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Incorrect options passed:", err)
		app.Usage(args)
		return 2
	}

	closer := setupLogging()
	defer closer()

	startTime := time.Now()
	log.Info(version)
	log.Info("Command line:", os.Args)

	sum.Version = version
	sum.CommandLine = os.Args
	sum.Command = command

	cache, err := openCache(*cacheF)
	if err != nil {
		log.Error("Error opening cache:", err)
		return 1
	}
	defer cache.Close()

	switch command {
	case chooseKCmd.FullCommand():
		err = chooseK(newChooseKSettings(), cache, os.Stdout)
	case metricsCmd.FullCommand():
		err = compileMetrics(newMetricsSettings(), cache, os.Stdout)
	case plotCmd.FullCommand():
		err = plotProportions(newPlotSettings())
	case runCmd.FullCommand():
		err = runFastStructure(newRunSettings(), *runDry, os.Stdout)
	}
	if err != nil {
		log.Critical(err)
		return 1
	}

	deltaT := time.Since(startTime)
	log.Infof("Running time: %v", deltaT)
	sum.Time = deltaT.Seconds()

	saveJSON(*jsonF)
	return 0
}

func main() {
	os.Exit(run(os.Args[1:]))
}
