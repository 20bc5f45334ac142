package config

import (
	"os"
	"os/exec"
	"strings"
)

// CIContext identifies the commit and branch a run is analysing
type CIContext struct {
	Provider   string
	CommitHash string
	Branch     string
}

// CIDetector reads commit and branch information from CI environment
// variables, falling back to the local git checkout
type CIDetector struct {
	getenv func(string) string
	git    func(args ...string) (string, error)
}

// NewCIDetector creates a detector reading the process environment
func NewCIDetector() *CIDetector {
	return &CIDetector{
		getenv: os.Getenv,
		git:    runGit,
	}
}

type ciProvider struct {
	name      string
	marker    string
	commitVar string
	branchVar []string
}

// Branch variables are listed in order of preference; pull request
// builds expose the source branch separately.
var ciProviders = []ciProvider{
	{name: "github-actions", marker: "GITHUB_ACTIONS", commitVar: "GITHUB_SHA", branchVar: []string{"GITHUB_HEAD_REF", "GITHUB_REF_NAME"}},
	{name: "gitlab-ci", marker: "GITLAB_CI", commitVar: "CI_COMMIT_SHA", branchVar: []string{"CI_MERGE_REQUEST_SOURCE_BRANCH_NAME", "CI_COMMIT_REF_NAME"}},
	{name: "azure-pipelines", marker: "TF_BUILD", commitVar: "BUILD_SOURCEVERSION", branchVar: []string{"SYSTEM_PULLREQUEST_SOURCEBRANCH", "BUILD_SOURCEBRANCHNAME"}},
	{name: "buildkite", marker: "BUILDKITE", commitVar: "BUILDKITE_COMMIT", branchVar: []string{"BUILDKITE_BRANCH"}},
	{name: "circleci", marker: "CIRCLECI", commitVar: "CIRCLE_SHA1", branchVar: []string{"CIRCLE_BRANCH"}},
	{name: "jenkins", marker: "JENKINS_URL", commitVar: "GIT_COMMIT", branchVar: []string{"CHANGE_BRANCH", "BRANCH_NAME", "GIT_BRANCH"}},
}

// Detect returns the best available CI context. Fields that cannot be
// determined are left empty.
func (d *CIDetector) Detect() CIContext {
	var ctx CIContext

	for _, p := range ciProviders {
		if d.getenv(p.marker) == "" {
			continue
		}
		ctx.Provider = p.name
		ctx.CommitHash = d.getenv(p.commitVar)
		for _, v := range p.branchVar {
			if branch := d.getenv(v); branch != "" {
				ctx.Branch = strings.TrimPrefix(branch, "refs/heads/")
				break
			}
		}
		break
	}

	if ctx.CommitHash == "" {
		if out, err := d.git("rev-parse", "HEAD"); err == nil {
			ctx.CommitHash = out
		}
	}
	if ctx.Branch == "" {
		// detached checkouts report HEAD
		if out, err := d.git("rev-parse", "--abbrev-ref", "HEAD"); err == nil && out != "HEAD" {
			ctx.Branch = out
		}
	}
	if ctx.Provider == "" {
		ctx.Provider = "local"
	}

	return ctx
}

func runGit(args ...string) (string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", err
	}
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
