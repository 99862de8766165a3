// Package gateway mediates component access to broker subscriptions.
//
// Components never subscribe directly. They register with a name and a
// priority tier; the gateway expands the tier through the topic
// registry, merges any explicit extra filters, and drives the shared
// client's refcounted subscribe calls. Unregister releases exactly the
// filters Register acquired, so after N matched register/unregister
// pairs nothing remains subscribed on the broker.
package gateway
