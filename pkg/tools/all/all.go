// Package all imports every built-in tool package for registration.
package all

import (
	_ "github.com/alex-paystack/command-centre-api-sub000/pkg/tools/account"
	_ "github.com/alex-paystack/command-centre-api-sub000/pkg/tools/dashboard"
	_ "github.com/alex-paystack/command-centre-api-sub000/pkg/tools/faq"
)
