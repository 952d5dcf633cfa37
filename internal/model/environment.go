package model

import (
	"fmt"
	"strings"
)

// Environment selects the remote endpoint and the operator credential set
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Valid reports whether e is a known environment
func (e Environment) Valid() bool {
	return e == EnvSandbox || e == EnvProduction
}

// ParseEnvironment accepts the environment name in any case
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(strings.ToLower(strings.TrimSpace(s)))
	if !env.Valid() {
		return "", fmt.Errorf("unknown environment %q", s)
	}
	return env, nil
}
