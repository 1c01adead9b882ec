// SPDX-License-Identifier: MPL-2.0

package project

import (
	"github.com/invowk/kiln/pkg/assembly"
	"github.com/invowk/kiln/pkg/compose"
	"github.com/invowk/kiln/pkg/dependency"
)

// Well-known configuration keys read by the build pipeline.
var (
	KeyProjectName    = compose.NewKey[string]("project_name", "Name of the project")
	KeyProjectGroup   = compose.NewKey[string]("project_group", "Group (organization) of the project")
	KeyProjectVersion = compose.NewKeyWithDefault("project_version", "Version of the project", "1.0-SNAPSHOT")

	KeyRepositories        = compose.NewKey[[]dependency.Repository]("repositories", "Repositories to resolve from, in precedence order")
	KeyLibraryDependencies = compose.NewKey[[]dependency.Dependency]("library_dependencies", "External library dependencies")
	KeyProjectDependencies = compose.NewKey[[]Dependency]("project_dependencies", "Dependencies on other projects of the session")

	KeySources     = compose.NewKeyWithDefault("sources", "Source roots, relative to the project root", []string{"src/main/java"})
	KeyResources   = compose.NewKeyWithDefault("resources", "Resource roots copied into the output", []string{"src/main/resources"})
	KeyTestSources = compose.NewKeyWithDefault("test_sources", "Test source roots", []string{"src/test/java"})

	KeyCompileCommand = compose.NewKey[string]("compile_command", "Shell command that compiles sources into $KILN_OUTPUT")
	KeyTestCommand    = compose.NewKey[string]("test_command", "Shell command that runs the tests")
	KeyTestLauncher   = compose.NewKey[string]("test_launcher", "group:artifact:version of the archive exported as $KILN_TEST_LAUNCHER")

	KeyBuildDir         = compose.NewKeyWithDefault("build_dir", "Build directory, relative to the project root", "build")
	KeyArchiveExtension = compose.NewKeyWithDefault("archive_extension", "File extension of the assembled archive", "jar")
	KeyAssemblyOutput   = compose.NewKey[string]("assembly_output_file", "Path of the assembled archive; ${key} references are expanded")
	KeyMergeStrategy    = compose.NewKeyWithDefault("assembly_merge_strategy", "Conflict rules for assembly", assembly.DefaultStrategy())
	KeyDeployDir        = compose.NewKey[string]("deploy_dir", "Directory the assembled archive is copied to when it exists")
	KeyWorkspaceDir     = compose.NewKey[string]("workspace_dir", "Directory of the build definition")
)

// Keys lists every well-known key name with its description, in display order.
func Keys() [][2]string {
	return [][2]string{
		{KeyProjectName.Name(), KeyProjectName.Description()},
		{KeyProjectGroup.Name(), KeyProjectGroup.Description()},
		{KeyProjectVersion.Name(), KeyProjectVersion.Description()},
		{KeyRepositories.Name(), KeyRepositories.Description()},
		{KeyLibraryDependencies.Name(), KeyLibraryDependencies.Description()},
		{KeyProjectDependencies.Name(), KeyProjectDependencies.Description()},
		{KeySources.Name(), KeySources.Description()},
		{KeyResources.Name(), KeyResources.Description()},
		{KeyTestSources.Name(), KeyTestSources.Description()},
		{KeyCompileCommand.Name(), KeyCompileCommand.Description()},
		{KeyTestCommand.Name(), KeyTestCommand.Description()},
		{KeyTestLauncher.Name(), KeyTestLauncher.Description()},
		{KeyBuildDir.Name(), KeyBuildDir.Description()},
		{KeyArchiveExtension.Name(), KeyArchiveExtension.Description()},
		{KeyAssemblyOutput.Name(), KeyAssemblyOutput.Description()},
		{KeyMergeStrategy.Name(), KeyMergeStrategy.Description()},
		{KeyDeployDir.Name(), KeyDeployDir.Description()},
		{KeyWorkspaceDir.Name(), KeyWorkspaceDir.Description()},
	}
}
