// SPDX-License-Identifier: MPL-2.0

package project

import (
	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/dependency"
)

// Context names activated by the build pipeline.
const (
	ContextCompile  = "compile"
	ContextTesting  = "testing"
	ContextAssembly = "assembly"
)

const (
	defaultCompileCommand = `mkdir -p "$KILN_OUTPUT" && ` +
		`javac -d "$KILN_OUTPUT" -cp "$KILN_CLASSPATH" $(find $KILN_SOURCES -name '*.java' 2>/dev/null)`
	defaultTestCommand = `java -jar "$KILN_TEST_LAUNCHER" --class-path "$KILN_CLASSPATH" --scan-class-path`

	junitConsole = "org.junit.platform:junit-platform-console-standalone:1.6.2"
)

var (
	// JavaProject is the root archetype of every Java project: Maven Central,
	// the conventional source layout and javac.
	JavaProject = compose.NewArchetype("java_project", "Java project compiled with javac", nil,
		compose.Add(KeyRepositories, dependency.MavenCentral),
		compose.Set(KeyCompileCommand, defaultCompileCommand),
	)

	// JUnitLayer adds the JUnit 5 test dependencies and runs them through the
	// console launcher.
	JUnitLayer = compose.NewArchetype("junit_layer", "JUnit 5 test support", nil,
		compose.Add(KeyLibraryDependencies,
			dependency.New("org.junit.jupiter", "junit-jupiter-api", "5.6.2", dependency.ScopeTest),
			dependency.New("org.junit.jupiter", "junit-jupiter-engine", "5.6.2", dependency.ScopeTest),
			dependency.New("org.junit.platform", "junit-platform-launcher", "1.6.2", dependency.ScopeTest),
		),
		compose.Set(KeyTestCommand, defaultTestCommand),
		compose.Set(KeyTestLauncher, junitConsole),
	)
)

func builtinConfigurations() []*compose.Configuration {
	return []*compose.Configuration{
		compose.NewConfiguration(ContextCompile, "Compilation phase"),
		compose.NewConfiguration(ContextTesting, "Test phase"),
		compose.NewConfiguration(ContextAssembly, "Assembly and packaging phase"),
	}
}

// ContextsFor returns the context stack a phase evaluates: the user-selected
// contexts followed by the phase's own context.
func ContextsFor(phase dependency.Phase, extra ...string) []string {
	out := make([]string, 0, len(extra)+1)
	out = append(out, extra...)
	switch phase {
	case dependency.PhaseTest:
		return append(out, ContextTesting)
	case dependency.PhaseRuntime:
		return append(out, ContextAssembly)
	default:
		return append(out, ContextCompile)
	}
}
