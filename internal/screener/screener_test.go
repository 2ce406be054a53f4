package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck_AcceptsCleanProgram(t *testing.T) {
	assert.Empty(t, Check("print(2+2)"))
}

func TestCheck_S2_ForbiddenImport(t *testing.T) {
	violations := Check("import os\nprint(os.listdir('/'))")
	assert.Contains(t, violations, "import os")
}

func TestCheck_S9_ViolationsStack(t *testing.T) {
	violations := Check(`import os; open("/etc/passwd")`)
	assert.GreaterOrEqual(t, len(violations), 2)
	assert.Contains(t, violations, "import os")
	assert.Contains(t, violations, "open")
}

func TestCheck_ForbiddenAttributeAccess(t *testing.T) {
	violations := Check("x = obj.__class__")
	assert.Equal(t, []string{"attribute __class__"}, violations)
}

func TestCheck_WithStatement(t *testing.T) {
	violations := Check("with open('f') as fh:\n    pass")
	assert.Contains(t, violations, "with statement")
	assert.Contains(t, violations, "open")
}

func TestCheck_FromImport(t *testing.T) {
	violations := Check("from subprocess import Popen")
	assert.Contains(t, violations, "from subprocess import ...")
}

func TestCheck_AliasedAndCommaSeparatedImports(t *testing.T) {
	violations := Check("import os.path as p, sys")
	assert.Contains(t, violations, "import os.path")
	assert.Contains(t, violations, "import sys")
}

func TestCheck_AllowsNonForbiddenModule(t *testing.T) {
	violations := Check("import math\nprint(math.sqrt(4))")
	assert.Empty(t, violations)
}

func TestCheck_SyntaxErrorOnUnterminatedString(t *testing.T) {
	violations := Check(`print("unterminated`)
	assert.Equal(t, []string{"syntax error"}, violations)
}

func TestCheck_SyntaxErrorOnUnbalancedParen(t *testing.T) {
	violations := Check("print(2+2")
	assert.Equal(t, []string{"syntax error"}, violations)
}

func TestCheck_IsPureAcrossRepeatedCalls(t *testing.T) {
	code := "import socket\nsocket.socket()"
	first := Check(code)
	second := Check(code)
	assert.Equal(t, first, second)
}

func TestCheck_ForbiddenCallAsBareName(t *testing.T) {
	violations := Check("eval('1+1')")
	assert.Contains(t, violations, "eval")
}

func TestCheck_DottedCallIsNotFlaggedAsBareName(t *testing.T) {
	violations := Check("import math\nmath.floor(1.5)")
	assert.NotContains(t, violations, "floor")
}
