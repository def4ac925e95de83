package tasklive_test

import (
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestDockerfileExists(t *testing.T) {
	_, err := os.Stat("Dockerfile")
	if err != nil {
		t.Fatalf("Dockerfile should exist: %v", err)
	}
}

func TestDockerfileMultiStageBuild(t *testing.T) {
	content := readFile(t, "Dockerfile")

	// マルチステージビルドの確認: ビルドステージと実行ステージが存在すること
	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}

	// 最終ステージは軽量イメージであること
	lines := strings.Split(content, "\n")
	var lastFrom string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "gcr.io/distroless") && !strings.Contains(lastFrom, "alpine") && !strings.Contains(lastFrom, "scratch") {
		t.Errorf("final stage should use a minimal base image (distroless/alpine/scratch), got: %s", lastFrom)
	}
}

func TestDockerfileBinaryName(t *testing.T) {
	content := readFile(t, "Dockerfile")

	// バイナリ名がtasklive、ビルド対象がcmd/taskliveであること
	if !strings.Contains(content, "/tasklive") {
		t.Error("Dockerfile should build a binary named 'tasklive'")
	}
	if !strings.Contains(content, "./cmd/tasklive") {
		t.Error("Dockerfile should build ./cmd/tasklive")
	}
}

func TestDockerfileEntrypointAndHealthcheck(t *testing.T) {
	content := readFile(t, "Dockerfile")

	// ENTRYPOINTまたはCMDでtasklive バイナリを起動すること
	if !strings.Contains(content, "ENTRYPOINT") && !strings.Contains(content, "CMD") {
		t.Error("Dockerfile should contain ENTRYPOINT or CMD")
	}

	// distrolessにはシェルが無いため、healthcheckサブコマンドを使うこと
	if !strings.Contains(content, `"healthcheck"`) {
		t.Error("Dockerfile HEALTHCHECK should use the healthcheck subcommand")
	}
}

func TestDockerComposeServices(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	// api, migrate, db の構成
	requiredServices := []string{"api:", "migrate:", "db:"}
	for _, svc := range requiredServices {
		if !strings.Contains(content, svc) {
			t.Errorf("docker-compose.yml should contain service %q", svc)
		}
	}

	// PostgreSQLイメージを使用していること
	if !strings.Contains(content, "postgres:") {
		t.Error("docker-compose.yml should use PostgreSQL image")
	}
}

func TestDockerComposeRequiresSecret(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	// 署名シークレットは未設定のまま起動させない
	if !strings.Contains(content, "JWT_SECRET: ${JWT_SECRET:?") {
		t.Error("docker-compose.yml should require JWT_SECRET from the environment")
	}
}

func TestDockerComposeNetworks(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	if !strings.Contains(content, "networks:") {
		t.Error("docker-compose.yml should define networks")
	}

	// DBは内部ネットワークのみに配置する
	if !strings.Contains(content, "internal: true") {
		t.Error("docker-compose.yml should define an internal network (internal: true) for the database")
	}
}
