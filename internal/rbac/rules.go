package rbac

// RolePermissions is the default policy of the grading gateway.
var RolePermissions = map[string][]string{
	"student": {
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
	},
	"teacher": {
		"quiz:import",
		"attempt:view-own",
		"attempt:view-all",
		"attempt:grade",
	},
	"admin": {
		"*", // everything
	},
}
