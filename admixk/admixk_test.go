package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"bitbucket.org/admixk/admixk/choosek"
	"bitbucket.org/admixk/admixk/launch"
)

// cliEnv makes the test binary run admixk with the arguments from
// cliArgsEnv, separated by cliArgsSep.
const (
	cliEnv     = "ADMIXK_TEST_CLI"
	cliArgsEnv = "ADMIXK_TEST_ARGS"
	cliArgsSep = "\x1f"
)

func TestMain(m *testing.M) {
	if os.Getenv(cliEnv) == "1" {
		os.Exit(run(strings.Split(os.Getenv(cliArgsEnv), cliArgsSep)))
	}
	os.Exit(m.Run())
}

// runCLI runs admixk in a subprocess and returns its exit status,
// standard output and standard error.
func runCLI(tst *testing.T, args ...string) (status int, stdout, stderr string) {
	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), cliEnv+"=1", cliArgsEnv+"="+strings.Join(args, cliArgsSep))
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		status = exitErr.ExitCode()
	default:
		tst.Fatal("Error running admixk:", err)
	}
	return status, outBuf.String(), errBuf.String()
}

func writeFile(tst *testing.T, fn, content string) {
	if err := os.WriteFile(fn, []byte(content), 0666); err != nil {
		tst.Fatal(err)
	}
}

func logText(values ...float64) (s string) {
	for _, v := range values {
		s += fmt.Sprintf("Marginal Likelihood = %v\n", v)
	}
	return
}

// makeRuns writes K=1..3 runs; K=2 has the highest likelihood and
// two components are used for K>1.
func makeRuns(tst *testing.T) string {
	dir := tst.TempDir()
	tag := filepath.Join(dir, "faststructure_K")
	writeFile(tst, tag+"1.1.log", logText(-150, -100))
	writeFile(tst, tag+"1.1.meanQ", "1\n1\n1\n1\n")
	writeFile(tst, tag+"2.2.log", logText(-90, -80))
	writeFile(tst, tag+"2.2.meanQ", "1 0\n1 0\n0 1\n0 1\n")
	writeFile(tst, tag+"3.3.log", logText(-82))
	writeFile(tst, tag+"3.3.meanQ", "1 0 0\n1 0 0\n0 1 0\n0 1 0\n")
	return tag
}

func TestChooseK(tst *testing.T) {
	sum = Summary{}
	tag := makeRuns(tst)
	table := filepath.Join(filepath.Dir(tag), "runs.txt")

	var out bytes.Buffer
	if err := chooseK(&chooseKSettings{tag: tag, tableF: table}, nil, &out); err != nil {
		tst.Fatal("Error choosing K:", err)
	}
	expected := "Model complexity that maximizes marginal likelihood = 2\n" +
		"Model components used to explain structure in data = 2\n"
	if out.String() != expected {
		tst.Errorf("Wrong output:\n%s", out.String())
	}

	b, err := os.ReadFile(table)
	if err != nil {
		tst.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(b)), "\n"); len(lines) != 4 {
		tst.Error("Wrong number of table lines:", lines)
	}
	if sum.Result == nil || sum.Result.MaxLikelihoodK != 2 || len(sum.Runs) != 3 {
		tst.Error("Wrong summary:", sum)
	}
	if len(sum.Files) != 1 || sum.Files[0] != table {
		tst.Error("Table not recorded in summary:", sum.Files)
	}
}

func TestChooseKMissingFiles(tst *testing.T) {
	sum = Summary{}
	var out bytes.Buffer
	tag := filepath.Join(tst.TempDir(), "faststructure_K")
	err := chooseK(&chooseKSettings{tag: tag}, nil, &out)
	if !errors.Is(err, choosek.ErrNoLogs) {
		tst.Error("Expected ErrNoLogs, got:", err)
	}
	if out.Len() != 0 {
		tst.Error("Partial output written:", out.String())
	}

	writeFile(tst, tag+"1.1.log", logText(-1))
	err = chooseK(&chooseKSettings{tag: tag}, nil, &out)
	if !errors.Is(err, choosek.ErrNoMeanQ) {
		tst.Error("Expected ErrNoMeanQ, got:", err)
	}
	if out.Len() != 0 {
		tst.Error("Partial output written:", out.String())
	}
}

func TestChooseKDivergedRun(tst *testing.T) {
	sum = Summary{}
	tag := filepath.Join(tst.TempDir(), "faststructure_K")
	writeFile(tst, tag+"1.1.log", "Marginal Likelihood = nan\n")
	writeFile(tst, tag+"1.1.meanQ", "1\n1\n1\n")
	writeFile(tst, tag+"2.2.log", logText(-80))
	writeFile(tst, tag+"2.2.meanQ", "1 0\n0 1\n0 1\n")

	var out bytes.Buffer
	if err := chooseK(&chooseKSettings{tag: tag}, nil, &out); err != nil {
		tst.Fatal("Error choosing K:", err)
	}
	if !strings.HasPrefix(out.String(), "Model complexity that maximizes marginal likelihood = 2\n") {
		tst.Error("Wrong output:", out.String())
	}
	if sum.Result.NLikelihood != 1 {
		tst.Error("Diverged run was counted:", sum.Result)
	}

	fn := filepath.Join(filepath.Dir(tag), "sum.json")
	saveJSON(fn)
	b, err := os.ReadFile(fn)
	if err != nil {
		tst.Fatal("Summary not written:", err)
	}
	var s Summary
	if err := json.Unmarshal(b, &s); err != nil {
		tst.Fatal(err)
	}
	if len(s.Runs) != 2 || s.Runs[0].HasLikelihood {
		tst.Error("Wrong runs in summary:", s.Runs)
	}
}

func TestChooseKCache(tst *testing.T) {
	sum = Summary{}
	tag := makeRuns(tst)
	cache, err := openCache(filepath.Join(filepath.Dir(tag), "cache.db"))
	if err != nil {
		tst.Fatal("Error opening cache:", err)
	}
	defer cache.Close()

	var first, second bytes.Buffer
	if err := chooseK(&chooseKSettings{tag: tag}, cache, &first); err != nil {
		tst.Fatal(err)
	}
	if err := chooseK(&chooseKSettings{tag: tag}, cache, &second); err != nil {
		tst.Fatal(err)
	}
	if first.String() != second.String() {
		tst.Errorf("Cached run differs:\n%s\n%s", first.String(), second.String())
	}

	if c, err := openCache(""); c != nil || err != nil {
		tst.Error("Empty file name should give no cache:", c, err)
	}
}

func TestCompileMetrics(tst *testing.T) {
	sum = Summary{}
	tag := makeRuns(tst)
	dir := filepath.Dir(tag)
	s := &metricsSettings{
		tag:        tag,
		kmin:       1,
		kmax:       10,
		outF:       filepath.Join(dir, "k_metrics_data.txt"),
		npyF:       filepath.Join(dir, "k_metrics_data.npy"),
		lnLPlotF:   filepath.Join(dir, "lnl.png"),
		bestKPlotF: filepath.Join(dir, "bestk.svg"),
	}
	var out bytes.Buffer
	if err := compileMetrics(s, nil, &out); err != nil {
		tst.Fatal("Error compiling metrics:", err)
	}
	if !strings.HasPrefix(out.String(), "Metrics compiled and saved to ") {
		tst.Error("Wrong output:", out.String())
	}

	b, err := os.ReadFile(s.outF)
	if err != nil {
		tst.Fatal(err)
	}
	expected := "# K,LLBO_Value,K_Phi_Star\n" +
		"1,-100.000000,1\n" +
		"2,-80.000000,2\n" +
		"3,-82.000000,2\n"
	if string(b) != expected {
		tst.Errorf("Wrong table:\n%s", b)
	}
	for _, fn := range []string{s.npyF, s.lnLPlotF, s.bestKPlotF} {
		if _, err := os.Stat(fn); err != nil {
			tst.Error("File not written:", err)
		}
	}
	if len(sum.Files) != 4 {
		tst.Error("Wrong files in summary:", sum.Files)
	}

	s.kmin, s.kmax = 5, 6
	if err := compileMetrics(s, nil, &out); err == nil {
		tst.Error("Empty K range accepted")
	}
}

func TestPlotProportions(tst *testing.T) {
	sum = Summary{}
	dir := tst.TempDir()
	tag := filepath.Join(dir, "faststructure_K")
	writeFile(tst, tag+"2.2.meanQ", "0.9 0.1\n0.2 0.8\n0.5 0.5\n0.3 0.7\n")
	labels := filepath.Join(dir, "names.txt")
	writeFile(tst, labels, "Kansas_Riley\nIowa_Story\nNebraska_Lancaster\nsample4\n")

	s := &plotSettings{
		k:       2,
		tag:     tag,
		labelsF: labels,
		colors:  []string{"#1f77b4", "orange"},
		outF:    filepath.Join(dir, "stacked.png"),
	}
	if s.meanQFile() != tag+"2.2.meanQ" {
		tst.Error("Wrong meanQ file:", s.meanQFile())
	}
	if err := plotProportions(s); err != nil {
		tst.Fatal("Error plotting:", err)
	}

	s.grouped = true
	s.outF = filepath.Join(dir, "grouped.svg")
	if err := plotProportions(s); err != nil {
		tst.Fatal("Error plotting grouped:", err)
	}
	if len(sum.Files) != 2 {
		tst.Error("Wrong files in summary:", sum.Files)
	}

	s.outF = ""
	if s.outFile() != "Admixture_County_Order_K2.pdf" {
		tst.Error("Wrong default grouped file name:", s.outFile())
	}
	s.grouped = false
	if s.outFile() != "Admixture_K2.pdf" {
		tst.Error("Wrong default file name:", s.outFile())
	}

	s.k = 3
	s.meanQF = tag + "2.2.meanQ"
	if err := plotProportions(s); err == nil {
		tst.Error("Wrong number of components accepted")
	}
}

func TestPlotGroupsFile(tst *testing.T) {
	dir := tst.TempDir()
	groups := filepath.Join(dir, "groups.json")
	writeFile(tst, groups, `{"order": ["North", "South"],
		"rules": [{"match": "N_", "group": "North"}, {"match": "S_", "group": "South"}]}`)
	s := &plotSettings{groupsF: groups}
	g, err := s.grouping()
	if err != nil {
		tst.Fatal(err)
	}
	if g.Assign("S_1") != "South" {
		tst.Error("Wrong group:", g.Assign("S_1"))
	}
}

func TestRunDry(tst *testing.T) {
	s := &launch.Settings{
		Binary:   "structure.py",
		Input:    "data/input",
		Output:   "faststructure_K",
		Format:   "str",
		KMin:     1,
		KMax:     3,
		BaseSeed: 10,
	}
	var out bytes.Buffer
	if err := runFastStructure(s, true, &out); err != nil {
		tst.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.Contains(lines[2], "--seed=13") {
		tst.Error("Wrong dry run:", lines)
	}

	s.KMax = 0
	if err := runFastStructure(s, true, &out); err == nil {
		tst.Error("Wrong K range accepted")
	}
}

func TestSaveJSON(tst *testing.T) {
	sum = Summary{Command: "choosek", Result: &choosek.Result{MaxLikelihoodK: 3, ModalBestK: 2}}
	fn := filepath.Join(tst.TempDir(), "sum.json")
	saveJSON(fn)
	b, err := os.ReadFile(fn)
	if err != nil {
		tst.Fatal(err)
	}
	var s Summary
	if err := json.Unmarshal(b, &s); err != nil {
		tst.Fatal(err)
	}
	if s.Command != "choosek" || s.Result == nil || s.Result.MaxLikelihoodK != 3 {
		tst.Error("Wrong summary:", s)
	}
}

func TestCLIExitStatus(tst *testing.T) {
	status, stdout, stderr := runCLI(tst, "choosek")
	if status != 2 {
		tst.Error("Missing --input should exit with 2, got:", status)
	}
	if stdout != "" || !strings.Contains(stderr, "Incorrect options passed") {
		tst.Errorf("Wrong usage output:\n%s\n%s", stdout, stderr)
	}

	tag := filepath.Join(tst.TempDir(), "faststructure_K")
	status, stdout, _ = runCLI(tst, "choosek", "--input="+tag)
	if status == 0 {
		tst.Error("Missing files should give a non-zero exit status")
	}
	if stdout != "" {
		tst.Error("Partial output written:", stdout)
	}

	tag = makeRuns(tst)
	dir := filepath.Dir(tag)
	jsonF := filepath.Join(dir, "sum.json")
	status, stdout, stderr = runCLI(tst, "--json="+jsonF, "--cache="+filepath.Join(dir, "cache.db"),
		"choosek", "--input="+tag)
	if status != 0 {
		tst.Fatalf("Exit status %d:\n%s", status, stderr)
	}
	if !strings.HasPrefix(stdout, "Model complexity that maximizes marginal likelihood = 2\n") {
		tst.Error("Wrong output:", stdout)
	}
	if _, err := os.Stat(jsonF); err != nil {
		tst.Error("Summary not written:", err)
	}
}
