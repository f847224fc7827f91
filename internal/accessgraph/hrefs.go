package accessgraph

import (
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// ResourceHref links a node to the list view that shows its entity, or "" for
// kinds without one.
func ResourceHref(n Node) string {
	var path string
	switch n.Kind {
	case KindEC2Target:
		path = "/ec2-instances"
	case KindRDSTarget:
		path = "/rds-instances"
	case KindRole:
		path = "/cyberark-roles"
	case KindSafe:
		path = "/cyberark-safes"
	case KindPolicy:
		path = "/cyberark-policies"
	case KindUser:
		path = "/cyberark-users"
	default:
		return ""
	}
	search := strings.TrimSpace(n.EntityID)
	if parsed, err := arn.Parse(search); err == nil {
		search = arnResourceID(parsed)
	}
	if search == "" {
		return path
	}
	return path + "?search=" + url.QueryEscape(search)
}

// ConsoleHref builds an AWS console deep link for an EC2 instance, RDS
// instance, IAM role or account. id may be an ARN or a bare identifier; bare
// identifiers need region.
func ConsoleHref(kind NodeKind, id, region string) string {
	id = strings.TrimSpace(id)
	region = strings.TrimSpace(region)
	partition := "aws"
	if parsed, err := arn.Parse(id); err == nil {
		partition = parsed.Partition
		if parsed.Region != "" {
			region = parsed.Region
		}
		switch parsed.Service {
		case "iam":
			if name, ok := strings.CutPrefix(parsed.Resource, "role/"); ok {
				return consoleBase(partition, "") + "/iam/home#/roles/" + url.PathEscape(lastSegment(name))
			}
		}
		if kind == KindAccount {
			id = parsed.AccountID
		} else {
			id = arnResourceID(parsed)
		}
	}
	if id == "" {
		return ""
	}

	switch kind {
	case KindEC2Target:
		if region == "" {
			return ""
		}
		return consoleBase(partition, region) + "/ec2/home?region=" + url.QueryEscape(region) + "#InstanceDetails:instanceId=" + url.QueryEscape(id)
	case KindRDSTarget:
		if region == "" {
			return ""
		}
		return consoleBase(partition, region) + "/rds/home?region=" + url.QueryEscape(region) + "#database:id=" + url.QueryEscape(id)
	case KindAccount:
		return consoleBase(partition, "") + "/billing/home#/account?accountId=" + url.QueryEscape(id)
	default:
		return ""
	}
}

func consoleBase(partition, region string) string {
	host := "console.aws.amazon.com"
	switch partition {
	case "aws-us-gov":
		host = "console.amazonaws-us-gov.com"
	case "aws-cn":
		host = "console.amazonaws.cn"
	}
	if region != "" && partition == "aws" {
		host = region + "." + host
	}
	return "https://" + host
}

// arnResourceID strips the resource type prefix, e.g. "instance/i-1" and
// "db:orders" become "i-1" and "orders".
func arnResourceID(a arn.ARN) string {
	res := a.Resource
	if i := strings.IndexAny(res, "/:"); i >= 0 {
		res = res[i+1:]
	}
	return res
}

func lastSegment(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
