package domain

type Command string

const (
	CmdReactorControl       Command = "reactor:control"
	CmdStationControl       Command = "station:control"
	CmdMetricsRequest       Command = "metrics:request"
	CmdUserManage           Command = "user:manage"
	CmdInventorySummary     Command = "inventory:request:summary"
	CmdInventoryAlerts      Command = "inventory:request:alerts"
	CmdInventoryStats       Command = "inventory:request:stats"
	CmdInventoryTransaction Command = "inventory:request:transactions"
	CmdTransactionCreate    Command = "inventory:transaction:create"
	CmdTransferCreate       Command = "inventory:transfer:create"
	CmdTransactionReverse   Command = "inventory:transaction:reverse"
	CmdAlertAcknowledge     Command = "inventory:alert:acknowledge"
	CmdReorder              Command = "inventory:reorder"
)

// AnyAuthenticated marks a command every authenticated actor may issue.
const AnyAuthenticated Permission = ""

// CommandPermissions is the single declaration of which permission each
// command requires. A command missing here is unrecognized.
var CommandPermissions = map[Command]Permission{
	CmdReactorControl:       PermControlReactors,
	CmdStationControl:       PermControlStations,
	CmdMetricsRequest:       PermReadDashboard,
	CmdUserManage:           PermManageUsers,
	CmdInventorySummary:     PermReadDashboard,
	CmdInventoryAlerts:      PermReadDashboard,
	CmdInventoryStats:       PermReadDashboard,
	CmdInventoryTransaction: PermReadDashboard,
	CmdTransactionCreate:    AnyAuthenticated,
	CmdTransferCreate:       PermWriteInventory,
	CmdTransactionReverse:   PermWriteInventory,
	CmdAlertAcknowledge:     PermWriteInventory,
	CmdReorder:              PermWriteInventory,
}
