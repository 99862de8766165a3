// Package topics is the static authority for the APS topic taxonomy.
//
// The factory estate publishes on four topic families:
//
//	ccu/...                      central control unit (orders, resets, pairing)
//	module/v1/ff/<serial>/...    production modules (HBW, DRILL, MILL, AIQS, DPS)
//	fts/v1/ff/<serial>/...       transport shuttle
//	/j1/txt/1/...                TXT controller sensor and order channels
//
// Topics are grouped into six priority tiers, from critical control (1)
// to the catch-all wildcard (6). Tier requests are inclusive: asking for
// tier k yields the union of tiers 1..k in declared order.
//
// The package also owns MQTT wildcard matching ("+" one level, "#"
// trailing levels) and the "{var}" pattern form used by message
// templates, which resolves like "+".
//
// The catalog is validated once at construction; malformed or duplicate
// declarations abort startup rather than surfacing later.
package topics
