//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-harvest/cmd"
	"media-harvest/infrastructure/config"

	"github.com/cucumber/godog"
)

type configContext struct {
	tempDir    string
	configPath string
	config     *config.Config
	output     *bytes.Buffer
	restoreEnv []func()
	err        error
}

// SharedConfigContext is reset before each scenario via After hook
var SharedConfigContext = &configContext{}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config.yaml")
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		testCtx.config = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		for _, restore := range testCtx.restoreEnv {
			restore()
		}
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		SharedConfigContext = &configContext{}
		return c, nil
	})

	// Background
	ctx.Step(`^a config file exists with no API keys$`, testCtx.aConfigFileExistsWithNoAPIKeys)
	ctx.Step(`^the config has API keys "([^"]*)"$`, testCtx.theConfigHasAPIKeys)

	// Loading
	ctx.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, testCtx.theEnvironmentVariableIs)
	ctx.Step(`^I load the configuration$`, testCtx.iLoadTheConfiguration)
	ctx.Step(`^the loaded config should have (\d+) API keys?$`, testCtx.theLoadedConfigShouldHaveAPIKeys)
	ctx.Step(`^the Nitter URL should be "([^"]*)"$`, testCtx.theNitterURLShouldBe)

	// Commands
	ctx.Step(`^I run config add-key "([^"]*)"$`, testCtx.iRunConfigAddKey)
	ctx.Step(`^I run config list-keys$`, testCtx.iRunConfigListKeys)
	ctx.Step(`^I run config remove-key "([^"]*)"$`, testCtx.iRunConfigRemoveKey)
	ctx.Step(`^I run config set-strategy "([^"]*)"$`, testCtx.iRunConfigSetStrategy)
	ctx.Step(`^I run config set-nitter "([^"]*)"$`, testCtx.iRunConfigSetNitter)
	ctx.Step(`^the config should contain API key "([^"]*)"$`, testCtx.theConfigShouldContainAPIKey)
	ctx.Step(`^the config should not contain API key "([^"]*)"$`, testCtx.theConfigShouldNotContainAPIKey)
	ctx.Step(`^the key strategy should be "([^"]*)"$`, testCtx.theKeyStrategyShouldBe)

	// Common assertions
	ctx.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	ctx.Step(`^the command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
	ctx.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	ctx.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
}

func (c *configContext) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.config = cfg
	return nil
}

func (c *configContext) saveConfig() error {
	return config.Save(c.config, c.configPath)
}

// --- Background ---

func (c *configContext) aConfigFileExistsWithNoAPIKeys() error {
	c.config = config.Default()
	return c.saveConfig()
}

func (c *configContext) theConfigHasAPIKeys(keys string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.config.Supadata.APIKeys = strings.Split(keys, ",")
	return c.saveConfig()
}

// --- Loading ---

func (c *configContext) theEnvironmentVariableIs(name, value string) error {
	prev, had := os.LookupEnv(name)
	c.restoreEnv = append(c.restoreEnv, func() {
		if had {
			os.Setenv(name, prev)
		} else {
			os.Unsetenv(name)
		}
	})
	return os.Setenv(name, value)
}

func (c *configContext) iLoadTheConfiguration() error {
	c.err = c.loadConfig()
	return c.err
}

func (c *configContext) theLoadedConfigShouldHaveAPIKeys(n int) error {
	if got := len(c.config.Supadata.APIKeys); got != n {
		return fmt.Errorf("expected %d API keys, got %d (%v)", n, got, c.config.Supadata.APIKeys)
	}
	return nil
}

func (c *configContext) theNitterURLShouldBe(expected string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	if c.config.Nitter.URL != expected {
		return fmt.Errorf("expected Nitter URL %q, got %q", expected, c.config.Nitter.URL)
	}
	return nil
}

// --- Commands ---

func (c *configContext) iRunConfigAddKey(key string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigAddKeyWithDependencies(c.config, c.configPath, key, c.output)
	return nil
}

func (c *configContext) iRunConfigListKeys() error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigListKeysWithDependencies(c.config, c.configPath, c.output)
	return nil
}

func (c *configContext) iRunConfigRemoveKey(ref string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigRemoveKeyWithDependencies(c.config, c.configPath, ref, c.output)
	return nil
}

func (c *configContext) iRunConfigSetStrategy(strategy string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigSetStrategyWithDependencies(c.config, c.configPath, strategy, c.output)
	return nil
}

func (c *configContext) iRunConfigSetNitter(url string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigSetNitterWithDependencies(c.config, c.configPath, url, c.output)
	return nil
}

func (c *configContext) theConfigShouldContainAPIKey(key string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	for _, k := range c.config.Supadata.APIKeys {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("API key %q not found in config", key)
}

func (c *configContext) theConfigShouldNotContainAPIKey(key string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	for _, k := range c.config.Supadata.APIKeys {
		if k == key {
			return fmt.Errorf("API key %q should not exist in config", key)
		}
	}
	return nil
}

func (c *configContext) theKeyStrategyShouldBe(expected string) error {
	if err := c.loadConfig(); err != nil {
		return err
	}
	if c.config.Supadata.KeyStrategy != expected {
		return fmt.Errorf("expected key strategy %q, got %q", expected, c.config.Supadata.KeyStrategy)
	}
	return nil
}

// --- Common assertions ---

func (c *configContext) theCommandShouldSucceed() error {
	if c.err != nil {
		return fmt.Errorf("expected command to succeed but got error: %v", c.err)
	}
	return nil
}

func (c *configContext) theCommandShouldFailWith(expected string) error {
	if c.err == nil {
		return fmt.Errorf("expected command to fail with %q but it succeeded", expected)
	}
	if !strings.Contains(c.err.Error(), expected) {
		return fmt.Errorf("expected error to contain %q but got: %v", expected, c.err)
	}
	return nil
}

func (c *configContext) theOutputShouldContain(expected string) error {
	output := c.output.String()
	if !strings.Contains(output, expected) {
		return fmt.Errorf("expected output to contain %q but got:\n%s", expected, output)
	}
	return nil
}

func (c *configContext) theOutputShouldNotContain(unexpected string) error {
	output := c.output.String()
	if strings.Contains(output, unexpected) {
		return fmt.Errorf("expected output not to contain %q but got:\n%s", unexpected, output)
	}
	return nil
}
