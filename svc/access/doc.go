// Package access decides whether an account may use a product feature.
//
// The subscription is the primary gate: ACTIVE subscriptions (and CANCELLED
// ones still inside their paid period) pass, GRACE_PERIOD passes only for
// features that allow it, and a feature may demand a minimum plan. Usage
// limits are a second, independent gate evaluated after the subscription
// allows, so an over-limit call is denied whatever the subscription state.
//
// Features come from a YAML registry or DefaultFeatures:
//
//	features:
//	  - feature: ai_analysis
//	    requires_subscription: true
//	    minimum_plan: MONTHLY
//	    rate_limit:
//	      max_usage: 50
//	      window: 24h
package access
