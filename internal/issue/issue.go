// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ProjectNotFoundId
	ModuleNotFoundId
	UnknownVersionId
	CheckoutConflictId
	NoSuchRemoteRefId
	RemoteProvisioningFailedId
	ProvisioningTimeoutId
	UncommittedChangesId
	DependenciesNotSatisfiedId
	ModifyOutsideMasterId
	InvalidMetadataId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load the configuration!

Your config file could not be parsed or contains invalid values.

## Things you can try:
- Check the error message above for the offending field
- Print the location of the file being read:
~~~
$ moduni config path
~~~

- Regenerate a default file and copy your settings over:
~~~
$ moduni config init
~~~

- Look for stale ` + "`MODUNI_*`" + ` environment variables`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	projectNotFoundIssue = &Issue{
		id: ProjectNotFoundId,
		mdMsg: `
# Project repository not found!

moduni works inside a git working copy that aggregates the modules as submodules.

## Things you can try:
- Run moduni from the project root, or pass it explicitly:
~~~
$ moduni --project /path/to/project module list
~~~

- Set ` + "`project_path`" + ` in your config file`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

No local module matches the name or ID you gave.

## Things you can try:
- List the modules of the project:
~~~
$ moduni module list
~~~

- List the modules available on your repository managers:
~~~
$ moduni module list --remote
~~~`,
	}

	unknownVersionIssue = &Issue{
		id: UnknownVersionId,
		mdMsg: `
# Unknown version!

The module has no branch or tag with that name.

## Things you can try:
- List the versions the module knows:
~~~
$ moduni module versions <module>
~~~

- Use ` + "`vX.Y.Z`" + ` for a release, ` + "`vX.Y.x`" + ` for a release line, or a branch name`,
	}

	checkoutConflictIssue = &Issue{
		id: CheckoutConflictId,
		mdMsg: `
# Checkout would overwrite local changes!

The module working copy has uncommitted changes that conflict with the requested version.

## Things you can try:
- Publish your changes first:
~~~
$ moduni module publish <module> -m "describe the change"
~~~

- Or inspect what changed:
~~~
$ moduni module status <module>
~~~`,
	}

	noSuchRemoteRefIssue = &Issue{
		id: NoSuchRemoteRefId,
		mdMsg: `
# Version not found on the remote!

The release line exists locally but its branch was never pushed.

## Things you can try:
- Publish the version again:
~~~
$ moduni module release <module> <version>
~~~`,
	}

	remoteProvisioningFailedIssue = &Issue{
		id: RemoteProvisioningFailedId,
		mdMsg: `
# A repository manager refused the request!

Creating, deleting or listing remote repositories failed.

## Things you can try:
- Check the host, port and credentials of the manager in your config file
- For Bitbucket, make sure the project key exists and your user may create repositories
- For SSH, make sure ` + "`git`" + ` is installed on the host and the root path is writable
- Repeated failures open a circuit breaker; wait a minute before retrying`,
	}

	provisioningTimeoutIssue = &Issue{
		id: ProvisioningTimeoutId,
		mdMsg: `
# A repository manager timed out!

## Things you can try:
- Check your network connection and VPN
- Raise the timeout in your config file:
~~~cue
provisioning_timeout: "2m"
~~~`,
	}

	uncommittedChangesIssue = &Issue{
		id: UncommittedChangesId,
		mdMsg: `
# The project commit failed!

The modules were updated but the project repository could not record the change.
Your working copy now has uncommitted changes.

## Things you can try:
- Inspect and commit the project manually:
~~~
$ git status
$ git commit -am "chore(modules): sync modules"
~~~`,
	}

	dependenciesNotSatisfiedIssue = &Issue{
		id: DependenciesNotSatisfiedId,
		mdMsg: `
# Dependencies not satisfied!

Some modules require versions of other modules that are not checked out.

## Things you can try:
- List the unsatisfied dependencies:
~~~
$ moduni module deps <module>
~~~

- Check out a newer version of the required module:
~~~
$ moduni module checkout <dependency> <version>
~~~`,
	}

	modifyOutsideMasterIssue = &Issue{
		id: ModifyOutsideMasterId,
		mdMsg: `
# Metadata can only change on master!

Module metadata is edited on the master branch and released from there.

## Things you can try:
~~~
$ moduni module checkout <module> master
~~~`,
	}

	invalidMetadataIssue = &Issue{
		id: InvalidMetadataId,
		mdMsg: `
# Invalid module metadata!

The ` + "`.moduni.cue`" + ` file of a module does not match the schema.

## Common issues:
- Missing or malformed ` + "`uuid`" + `
- ` + "`maturity_level`" + ` outside 0-10
- A dependency without ` + "`minimum_version`" + ``,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to perform this operation.

## Things you can try:
- Check file/directory permissions of the project and the manager folders
- Check the credentials of your repository managers`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():         configLoadFailedIssue,
		projectNotFoundIssue.Id():          projectNotFoundIssue,
		moduleNotFoundIssue.Id():           moduleNotFoundIssue,
		unknownVersionIssue.Id():           unknownVersionIssue,
		checkoutConflictIssue.Id():         checkoutConflictIssue,
		noSuchRemoteRefIssue.Id():          noSuchRemoteRefIssue,
		remoteProvisioningFailedIssue.Id(): remoteProvisioningFailedIssue,
		provisioningTimeoutIssue.Id():      provisioningTimeoutIssue,
		uncommittedChangesIssue.Id():       uncommittedChangesIssue,
		dependenciesNotSatisfiedIssue.Id(): dependenciesNotSatisfiedIssue,
		modifyOutsideMasterIssue.Id():      modifyOutsideMasterIssue,
		invalidMetadataIssue.Id():          invalidMetadataIssue,
		permissionDeniedIssue.Id():         permissionDeniedIssue,
	}
)

// Values returns every issue ordered by ID.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
