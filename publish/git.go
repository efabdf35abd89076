package publish

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"go.uber.org/zap"

	"nsg/config"
)

const defaultCommitMessage = "content sync: {{ .Pages }} page(s) at {{ .Date }}"

// messageValues holds variables available to the commit message template.
type messageValues struct {
	Site     string
	Pages    int
	UpToDate int
	Date     string
}

// gitPush commands the repository in the output directory through add, commit
// and push. Nothing staged means nothing to do. Any failing command aborts
// the sequence with its full output attached.
func (p *publisher) gitPush(ctx context.Context) error {
	out, err := p.git(ctx, "status", "--porcelain")
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		p.log.Info("No changes to commit")
		return nil
	}

	message, err := p.commitMessage()
	if err != nil {
		return err
	}

	if _, err := p.git(ctx, "add", "-A"); err != nil {
		return err
	}
	if _, err := p.git(ctx, "commit", "-m", message); err != nil {
		return err
	}
	if _, err := p.git(ctx, "push", p.conf.Git.Remote, p.conf.Git.Branch); err != nil {
		return err
	}
	p.log.Info("Pushed site to git remote",
		zap.String("remote", p.conf.Git.Remote), zap.String("branch", p.conf.Git.Branch))
	return nil
}

func (p *publisher) git(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.conf.Site.OutputDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w\n%s", strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	p.log.Debug("Git step done", zap.String("args", strings.Join(args, " ")))
	return out, nil
}

func (p *publisher) commitMessage() (string, error) {
	field := strings.TrimSpace(p.conf.Git.MessageTemplate)
	if field == "" {
		field = defaultCommitMessage
	}

	tmpl, err := template.New(string(config.GitMessageTemplateFieldName)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse commit message template: %w", err)
	}

	buf := new(bytes.Buffer)
	err = tmpl.Execute(buf, messageValues{
		Site:     p.conf.Site.Title,
		Pages:    p.published,
		UpToDate: p.upToDate,
		Date:     time.Now().Format("2006-01-02 15:04"),
	})
	if err != nil {
		return "", fmt.Errorf("unable to expand commit message template: %w", err)
	}

	message := strings.TrimSpace(buf.String())
	if message == "" {
		message = "content sync"
	}
	return message, nil
}
