// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	KilnfileNotFoundId Id = iota + 1
	KilnfileParseErrorId
	ProjectNotFoundId
	DependencyCycleId
	UnresolvedDependencyId
	MergeConflictId
	CompileFailedId
	ConfigLoadFailedId
)

type (
	// Id identifies a catalog entry.
	Id int

	// MarkdownMsg is the guide text of an issue.
	MarkdownMsg string

	// HttpLink is a documentation link.
	HttpLink string

	// Issue is a Markdown troubleshooting guide shown after a failure.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

var (
	render = glamour.Render

	issues = []*Issue{
		{
			id: KilnfileNotFoundId,
			mdMsg: `
# No kilnfile found!

kiln looks for ` + "`kilnfile.cue`" + ` in the working directory and its parents.

## Things you can try:
- Run kiln from inside your workspace
- Point at a definition explicitly:
~~~
$ kiln --file path/to/kilnfile.cue projects
~~~

## Minimal kilnfile:
~~~cue
projects: app: archetypes: ["java_project"]
~~~`,
		},
		{
			id: KilnfileParseErrorId,
			mdMsg: `
# Failed to read the kilnfile!

The build definition does not match the kilnfile schema.

## Common issues:
- A fragment names a key that is neither well-known nor declared under ` + "`keys`" + `
- An operation the key does not support, e.g. ` + "`append`" + ` on a list
- A project name that does not start with a letter

## Things you can try:
- Check the path printed above, e.g. ` + "`projects.app.fragments[2]`" + `
- List the well-known keys with ` + "`kiln inspect <project>`" + ``,
		},
		{
			id: ProjectNotFoundId,
			mdMsg: `
# Project not found!

## Things you can try:
- List the declared projects:
~~~
$ kiln projects
~~~
- Check the ` + "`project_dependencies`" + ` of the project that requires it`,
		},
		{
			id: DependencyCycleId,
			mdMsg: `
# Project dependency cycle!

Projects can only depend on projects that do not depend back on them.

## Things you can try:
- Follow the cycle printed above and remove one edge
- Move the shared code into a project both sides depend on`,
		},
		{
			id: UnresolvedDependencyId,
			mdMsg: `
# Dependency could not be resolved!

No repository of the project supplied the artifact.

## Things you can try:
- Check the coordinate and version for typos
- Add the repository that publishes it:
~~~cue
{key: "repositories", op: "add", value: {name: "mine", url: "file:///srv/maven"}}
~~~
- Inspect the repository order with ` + "`kiln inspect <project>`" + ``,
		},
		{
			id: MergeConflictId,
			mdMsg: `
# Assembly merge conflict!

Several sources ship the same archive entry and the merge strategy says ` + "`error`" + `.

## Things you can try:
- Add a merge rule for the entry:
~~~cue
{key: "assembly_merge_strategy", op: "add", value: {pattern: "META-INF/LICENSE", action: "keep_first"}}
~~~
- Exclude the dependency that ships it`,
		},
		{
			id: CompileFailedId,
			mdMsg: `
# Compilation failed!

The compiler output is shown above, unchanged.

## Things you can try:
- Fix the reported errors and run the build again
- Check the classpath with ` + "`kiln deps <project> --phase compile`" + ``,
		},
		{
			id: ConfigLoadFailedId,
			mdMsg: `
# Failed to load the kiln configuration!

## Things you can try:
- Print the file kiln read with ` + "`kiln config path`" + `
- Regenerate a default configuration with ` + "`kiln config init`" + ``,
		},
	}
)

// Id returns the issue's identifier.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the guide text.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the guide for the terminal with the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\n## See also:\n")
		for _, link := range i.docLinks {
			sb.WriteString("- " + string(link) + "\n")
		}
		md += sb.String()
	}
	return render(md, stylePath)
}

// Values returns every issue in Id order.
func Values() []*Issue {
	return slices.Clone(issues)
}

// Get returns the issue with the given Id, or nil.
func Get(id Id) *Issue {
	idx := slices.IndexFunc(issues, func(i *Issue) bool { return i.id == id })
	if idx < 0 {
		return nil
	}
	return issues[idx]
}
