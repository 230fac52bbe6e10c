package dataonline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/panelkeeper/panelkeeper/internal/runner"
)

func TestClassifyLogin(t *testing.T) {
	assert.Equal(t, runner.OutcomeDisabled,
		classifyLogin(baseURL+"/evo/login/account-disabled", ""))
	assert.Equal(t, runner.OutcomeWrongCredential,
		classifyLogin(baseURL+"/evo/login/wrong-password", ""))
	assert.Equal(t, runner.OutcomeWrongCredential,
		classifyLogin(baseURL+"/evo/login?error=invalid", ""))
	assert.Equal(t, runner.OutcomeSuccess,
		classifyLogin(baseURL+"/evo/user", ""))

	// URL still on the login page: fall back to page text.
	assert.Equal(t, runner.OutcomeDisabled,
		classifyLogin(baseURL+"/evo/login", "Your account has been disabled"))
	assert.Equal(t, runner.OutcomeWrongCredential,
		classifyLogin(baseURL+"/evo/login", "Wrong password, try again"))
	assert.Equal(t, runner.OutcomeUnknown,
		classifyLogin(baseURL+"/evo/login", "Sign in to continue"))
}
