// Package template loads and applies per-topic message structure definitions.
//
// Templates live in a YAML tree, one category per directory, one
// topic-group per file:
//
//	configs/templates/
//	  ccu/
//	    order.yaml
//	    commands.yaml
//	  module/
//	    channels.yaml
//	  fts/
//	    channels.yaml
//	  txt/
//	    sensors.yaml
//
// Each file declares templates as an ordered list:
//
//	templates:
//	  - topic: ccu/order/request
//	    fields:
//	      timestamp: {type: string, format: ISO_8601, required: true}
//	      orderType: {type: string, required: true, enum: [STORAGE, RETRIEVAL, PRODUCTION]}
//
// Topics may use "{var}" placeholders that match a single path level,
// equivalent to the MQTT "+" wildcard. Exact topics take precedence over
// patterns; among patterns the first declared wins.
//
// Validation is advisory: a failed payload is logged but still buffered
// and recorded. The manager is the only component that interprets payload
// shape; everything else treats payloads as opaque JSON.
package template
