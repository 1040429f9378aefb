package bot

// User-facing reply texts.
const (
	textStart = "Hello, I can help you mention friends! " +
		"\n /in to agree to get tagged. " +
		"\n /everyone to tag all that agreed to get tagged. " +
		"\n /out to stop getting tagged."

	textHelp = textStart +
		"\n\nRoles (chat administrators):" +
		"\n /create_role <name>" +
		"\n /delete_role <name>" +
		"\n /add_user_to_role <name> (reply to the user's message)" +
		"\n /remove_user_from_role <name> (reply to the user's message)" +
		"\n\nEveryone:" +
		"\n /mention_role <name>" +
		"\n /roles_info"

	textOptedIn     = "You have agreed to be tagged in this group."
	textAlreadyIn   = "You are already in the tag list."
	textOptedOut    = "You have been removed from the tag list."
	textNotIn       = "You were not in the tag list."
	textNobodyOptIn = "No users have agreed to be tagged yet."

	textUnauthorized    = "Only chat administrators can manage roles."
	textNoReplyTarget   = "Reply to a message from the user with this command."
	textUsage           = "Usage: /%s <role_name>"
	textInvalidRoleName = "Role names are 1-32 letters, digits, '_' or '-'."

	textRoleCreated   = "Role '%s' created."
	textRoleExists    = "Role '%s' already exists."
	textRoleDeleted   = "Role '%s' deleted."
	textRoleNotFound  = "Role '%s' does not exist."
	textMemberAdded   = "%s added to role '%s'."
	textAlreadyMember = "%s is already in role '%s'."
	textMemberRemoved = "%s removed from role '%s'."
	textNotMember     = "%s is not in role '%s'."
	textRoleEmpty     = "Role '%s' has no members."
	textNoRoles       = "No roles have been created yet."
	textRolesHeader   = "Roles:"
	textUnknownUser   = "(unknown user)"
	textNoMembers     = "(no members)"

	textFailure = "Something went wrong. Please try again later."
)
